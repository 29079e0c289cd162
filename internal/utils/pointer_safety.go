package utils

func Ptr[T any](v T) *T {
	return &v
}

// Copy returns a pointer to a copy of *v, nil when v is nil
func Copy[T any](v *T) *T {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}
