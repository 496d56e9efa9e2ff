package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// RootLoc is the location reported for errors that are not bound to a field
const RootLoc = "__root__"

var tagValidate = validator.New()

// Validate checks payload against the schema id as resolved by resolver.
// It returns the normalized values keyed by JSON name: defaults filled in,
// unknown keys dropped and nested objects normalized recursively.
func Validate(resolver Resolver, id ID, payload any) (map[string]any, error) {
	v := &validation{resolver: resolver}
	out := v.object(id, payload, nil)
	if len(v.errs) > 0 {
		return nil, &ValidationError{Schema: id, Errors: v.errs}
	}
	return out, nil
}

type validation struct {
	resolver Resolver
	errs     []FieldError
}

func (v *validation) fail(loc []string, typ, msg string, ctx map[string]any) {
	v.errs = append(v.errs, FieldError{Loc: append([]string{}, loc...), Msg: msg, Type: typ, Ctx: ctx})
}

func (v *validation) object(id ID, payload any, loc []string) map[string]any {
	model, ok := v.resolver.Model(id)
	if !ok {
		v.fail(loc, "schema_error.unknown", fmt.Sprintf("unknown schema %q", id), nil)
		return nil
	}
	raw, ok := payload.(map[string]any)
	if !ok {
		v.fail(withRoot(loc), "type_error.dict", "value is not a valid dict", nil)
		return nil
	}

	before := len(v.errs)
	out := make(map[string]any, len(model.Fields))
	byName := make(map[string]any, len(model.Fields))
	failed := make(map[string]bool)
	for _, f := range model.Fields {
		fieldLoc := append(append([]string{}, loc...), f.JSONName())
		value, present := raw[f.JSONName()]
		if !present {
			if f.Required() {
				v.fail(fieldLoc, "value_error.missing", "field required", nil)
				failed[f.Name] = true
				continue
			}
			value = copyValue(f.Attributes[AttrDefault])
			out[f.JSONName()] = value
			byName[f.Name] = value
			continue
		}

		n := len(v.errs)
		value = v.value(f.Type, value, fieldLoc)
		if len(v.errs) == n {
			v.tag(f, value, fieldLoc)
		}
		if len(v.errs) > n {
			failed[f.Name] = true
			continue
		}
		out[f.JSONName()] = value
		byName[f.Name] = value
	}

	for _, val := range model.Validators {
		if val.Func == nil || !ready(val, failed, len(v.errs) > before) {
			continue
		}
		if err := val.Func(byName); err != nil {
			valLoc := append([]string{}, loc...)
			if len(val.Fields) > 0 {
				valLoc = append(valLoc, jsonNameOf(model, val.Fields[0]))
			} else {
				valLoc = append(valLoc, RootLoc)
			}
			v.fail(valLoc, "value_error", err.Error(), map[string]any{"validator": val.Name})
		}
	}
	return out
}

// copyValue deep-copies the maps and slices of a default so payloads never
// share them with the schema
func copyValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, json.Number:
		return v
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyInto(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyInto(iter.Value()))
		}
		return out.Interface()
	}
	return v
}

// copyInto copies one element and converts it back to the element type
func copyInto(elem reflect.Value) reflect.Value {
	if elem.Kind() == reflect.Interface && elem.IsNil() {
		return elem
	}
	copied := copyValue(elem.Interface())
	if copied == nil {
		return reflect.Zero(elem.Type())
	}
	return reflect.ValueOf(copied).Convert(elem.Type())
}

// ready reports whether every field the validator looks at passed
func ready(val *Validator, failed map[string]bool, anyFailed bool) bool {
	if len(val.Fields) == 0 {
		return !anyFailed
	}
	for _, name := range val.Fields {
		if failed[name] {
			return false
		}
	}
	return true
}

func jsonNameOf(model *Model, name string) string {
	if f, ok := model.Field(name); ok {
		return f.JSONName()
	}
	return name
}

func withRoot(loc []string) []string {
	if len(loc) == 0 {
		return []string{RootLoc}
	}
	return loc
}

func (v *validation) value(t Type, value any, loc []string) any {
	if value == nil {
		if t.Nullable || t.Kind == KindAny {
			return nil
		}
		v.fail(loc, "type_error.none.not_allowed", "none is not an allowed value", nil)
		return nil
	}

	switch t.Kind {
	case KindAny:
		return value
	case KindString:
		if _, ok := value.(string); !ok {
			v.fail(loc, "type_error.str", "str type expected", nil)
		}
		return value
	case KindInt:
		if !isInteger(value) {
			v.fail(loc, "type_error.integer", "value is not a valid integer", nil)
		}
		return value
	case KindFloat:
		if _, ok := toFloat(value); !ok {
			v.fail(loc, "type_error.float", "value is not a valid float", nil)
		}
		return value
	case KindBool:
		if _, ok := value.(bool); !ok {
			v.fail(loc, "type_error.bool", "value could not be parsed to a boolean", nil)
		}
		return value
	case KindList:
		items, ok := value.([]any)
		if !ok {
			v.fail(loc, "type_error.list", "value is not a valid list", nil)
			return value
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = v.value(*t.Elem, item, append(append([]string{}, loc...), strconv.Itoa(i)))
		}
		return out
	case KindMap:
		entries, ok := value.(map[string]any)
		if !ok {
			v.fail(loc, "type_error.dict", "value is not a valid dict", nil)
			return value
		}
		out := make(map[string]any, len(entries))
		for k, item := range entries {
			out[k] = v.value(*t.Elem, item, append(append([]string{}, loc...), k))
		}
		return out
	case KindSchema:
		return v.object(t.Ref, value, loc)
	case KindEnum:
		enum, ok := v.resolver.Enum(t.Ref)
		if !ok {
			v.fail(loc, "schema_error.unknown", fmt.Sprintf("unknown enum %q", t.Ref), nil)
			return value
		}
		if !enum.HasValue(value) {
			permitted := make([]any, 0, len(enum.Members))
			for _, m := range enum.Members {
				permitted = append(permitted, m.Value)
			}
			v.fail(loc, "type_error.enum", "value is not a valid enumeration member",
				map[string]any{"enum_values": permitted})
		}
		return value
	}
	return value
}

// tag applies the go-playground validation tag of a field, if any
func (v *validation) tag(f *Field, value any, loc []string) {
	tag, _ := f.Attributes[AttrValidate].(string)
	if tag == "" || value == nil {
		return
	}
	if n, ok := value.(json.Number); ok {
		if fv, err := n.Float64(); err == nil {
			value = fv
		}
	}
	err := tagValidate.Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.fail(loc, "value_error", err.Error(), nil)
		return
	}
	for _, fe := range verrs {
		ctx := map[string]any{"tag": fe.Tag()}
		if fe.Param() != "" {
			ctx["param"] = fe.Param()
		}
		v.fail(loc, "value_error."+fe.Tag(), fmt.Sprintf("failed on the %q constraint", fe.Tag()), ctx)
	}
}

func isInteger(value any) bool {
	switch n := value.(type) {
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return true
		}
	case bool, string:
		return false
	}
	f, ok := toFloat(value)
	return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
}

// toFloat converts any numeric value to float64
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case nil, bool, string:
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
