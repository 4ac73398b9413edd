package reflectx

import "reflect"

// IsRefinedType reports whether value is exactly R, so a named type such as
// types.ContextVars does not match its underlying map type.
func IsRefinedType[R any](value reflect.Type) bool {
	return reflect.TypeFor[R]() == value
}
