// Package utils holds small helpers shared by the config and CLI layers.
package utils

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
