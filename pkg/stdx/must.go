// Package stdx has small generic helpers missing from the standard library.
package stdx

// Must1 returns v and panics when err is not nil. Use it for values built
// at package initialization, where a failure is a programming error.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
