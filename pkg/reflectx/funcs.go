// Package reflectx holds the reflection helpers tool definitions are built on.
package reflectx

import (
	"reflect"
	"runtime"
	"strings"
)

func IsFunction(fn any) bool {
	return fn != nil && reflect.TypeOf(fn).Kind() == reflect.Func
}

// FunctionName names fn after its declaration: the type name for named
// function types, otherwise the last segment of the symbol with the method
// value suffix removed. Closures come out as func1, func2 and so on.
func FunctionName(fn any) string {
	if !IsFunction(fn) {
		return ""
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()
	if typ.Name() != "" {
		return typ.String()
	}

	rf := runtime.FuncForPC(val.Pointer())
	if rf == nil {
		return typ.String()
	}
	name := rf.Name()
	if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
		name = name[lastDot+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
