package tool

import (
	"context"
	"fmt"
	"reflect"

	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	"github.com/phdev/Final-Assignment-Template/pkg/reflectx"
	"github.com/phdev/Final-Assignment-Template/pkg/stdx"
	"github.com/phdev/Final-Assignment-Template/types"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a Go function the model may call. Parameters maps the
// positional names param0, param1... to the names the model sees.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema returns the tool name and the JSON schema of its
// arguments object. context.Context and ContextVars parameters are supplied
// by the runtime and never appear in the schema.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	name := td.Name
	if name == "" {
		name = reflectx.FunctionName(td.Function)
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	var required []string
	for _, p := range td.params() {
		if p.injected {
			continue
		}
		prop := functionReflector.ReflectFromType(p.typ)
		prop.Version = ""
		schema.Properties.Set(p.name, prop)
		required = append(required, p.name)
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return name, schema
}

type param struct {
	name     string
	typ      reflect.Type
	injected bool
}

var contextType = reflect.TypeFor[context.Context]()

func (td Definition) params() []param {
	typ := reflect.TypeOf(td.Function)
	if typ == nil || typ.Kind() != reflect.Func {
		return nil
	}

	out := make([]param, 0, typ.NumIn())
	pos := 0
	for i := range typ.NumIn() {
		pt := typ.In(i)
		if pt == contextType || reflectx.IsRefinedType[types.ContextVars](pt) {
			out = append(out, param{typ: pt, injected: true})
			continue
		}
		name := fmt.Sprintf("param%d", pos)
		if alias, ok := td.Parameters[name]; ok {
			name = alias
		}
		out = append(out, param{name: name, typ: pt})
		pos++
	}
	return out
}

// Option configures a Definition.
type Option = opts.Option[Definition]

// Must is New that panics on error. Use it for package-level tool tables.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// New wraps f as a tool. The name defaults to the function's name.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

var (
	Name        = opts.ForName[Definition, string]("Name")
	Description = opts.ForName[Definition, string]("Description")
)

// Parameters names the function's model-visible parameters in order.
func Parameters(parameters ...string) Option {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
