package users

import "context"

// Repo is the credential store boundary. Lookups return errors.ErrAccountNotFound when no
// record matches. Save inserts or updates the full record.
type Repo interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*User, error)
}
