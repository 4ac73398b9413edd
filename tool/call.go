package tool

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/phdev/Final-Assignment-Template/types"
	"github.com/tidwall/gjson"
)

var errorType = reflect.TypeFor[error]()

// Call invokes the tool with the JSON arguments object produced by the model
// and renders the first non-error result as text. A panic inside the tool is
// returned as an error.
func (td Definition) Call(ctx context.Context, arguments string, contextVars types.ContextVars) (result string, err error) {
	fn := reflect.ValueOf(td.Function)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return "", fmt.Errorf("tool %s has no function", td.Name)
	}

	args, err := td.buildArgs(ctx, arguments, contextVars)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = fmt.Errorf("tool %s panicked: %v", td.Name, r)
		}
	}()

	return formatResults(fn.Call(args))
}

func (td Definition) buildArgs(ctx context.Context, arguments string, contextVars types.ContextVars) ([]reflect.Value, error) {
	if arguments == "" {
		arguments = "{}"
	}
	if !gjson.Valid(arguments) {
		return nil, fmt.Errorf("invalid arguments for %s: %s", td.Name, arguments)
	}
	doc := gjson.Parse(arguments)

	params := td.params()
	out := make([]reflect.Value, len(params))
	for i, p := range params {
		if p.injected {
			if p.typ == contextType {
				out[i] = reflect.ValueOf(ctx)
			} else {
				out[i] = reflect.ValueOf(contextVars).Convert(p.typ)
			}
			continue
		}

		val := doc.Get(p.name)
		if !val.Exists() {
			return nil, fmt.Errorf("missing argument %q for %s", p.name, td.Name)
		}
		v, err := decodeArg(val, p.typ)
		if err != nil {
			return nil, fmt.Errorf("argument %q for %s: %w", p.name, td.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// decodeArg converts one JSON value to the parameter type. Strings accept
// any scalar so that a model sending 4 instead of "4" still gets through.
func decodeArg(val gjson.Result, typ reflect.Type) (reflect.Value, error) {
	if typ.Kind() == reflect.String && val.Type != gjson.JSON {
		return reflect.ValueOf(val.String()).Convert(typ), nil
	}
	ptr := reflect.New(typ)
	if err := json.Unmarshal([]byte(val.Raw), ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

func formatResults(results []reflect.Value) (string, error) {
	var value *reflect.Value
	for i := range results {
		r := results[i]
		if r.Type().Implements(errorType) && r.Type().Kind() == reflect.Interface {
			if !r.IsNil() {
				return "", r.Interface().(error)
			}
			continue
		}
		if value == nil {
			value = &r
		}
	}
	if value == nil {
		return "", nil
	}
	return formatValue(value.Interface())
}

func formatValue(v any) (string, error) {
	switch tv := v.(type) {
	case nil:
		return "", nil
	case string:
		return tv, nil
	case time.Time:
		return tv.Format(time.RFC3339Nano), nil
	case bool:
		return strconv.FormatBool(tv), nil
	case int, int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(tv).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(tv).Uint(), 10), nil
	case float32:
		return strconv.FormatFloat(float64(tv), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64), nil
	case encoding.TextMarshaler:
		b, err := tv.MarshalText()
		if err != nil {
			return "", fmt.Errorf("marshal tool result: %w", err)
		}
		return string(b), nil
	case fmt.Stringer:
		return tv.String(), nil
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return "", errors.Join(errors.New("marshal tool result"), err)
		}
		return string(b), nil
	}
}
