package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/fittrack-server/internal/utils"
)

// RoleType is the single role an account holds
type RoleType string

const (
	RoleUser  RoleType = "user"  // Ordinary member, owns workouts
	RoleAdmin RoleType = "admin" // Can view all members and archive, restore or delete them
)

// Valid reports whether r is one of the known roles
func (r RoleType) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account record held by the credential store. The trust layer reads all of it
// but only ever writes FailedAttempts, LockedUntil, LastLogin and, through admin actions,
// IsArchived and Role.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // never serialize
	Role         RoleType   `json:"role"`
	IsArchived   bool       `json:"is_archived"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
}

// Clone returns a deep copy so stores never share mutable state with callers
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.LastLogin = utils.Copy(u.LastLogin)
	c.LockedUntil = utils.Copy(u.LockedUntil)
	return &c
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares in constant time with respect to the password contents
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
