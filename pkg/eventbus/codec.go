package eventbus

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Codec converts event values to and from envelope payloads.
type Codec interface {
	Encode(v any) (string, error)
	Decode(data string, v any) error
}

// JSONCodec is the default Codec.
//
// Decode rejects unknown object fields and, for struct targets, objects that
// lack a field without omitempty. Decoding an envelope into the wrong event
// type therefore fails instead of yielding a partly zero value.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

// Encode implements Codec.
func (JSONCodec) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data string, v any) error {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after payload")
	}
	return checkRequired(data, reflect.TypeOf(v))
}

// checkRequired reports the first field of the struct behind t that is
// required but absent from the JSON object in data.
func checkRequired(data string, t reflect.Type) error {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	required := requiredFields(t)
	if len(required) == 0 {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return err
	}
	present := make(map[string]bool, len(obj))
	for k := range obj {
		present[strings.ToLower(k)] = true
	}
	for _, name := range required {
		if !present[strings.ToLower(name)] {
			return fmt.Errorf("missing field %q", name)
		}
	}
	return nil
}

var requiredCache sync.Map // reflect.Type -> []string

// requiredFields lists the JSON names of t's exported fields that encoding
// always emits, following untagged embedded structs.
func requiredFields(t reflect.Type) []string {
	if cached, ok := requiredCache.Load(t); ok {
		return cached.([]string)
	}
	var names []string
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				// A nil embedded pointer is omitted on encode.
				if f.Type.Kind() != reflect.Pointer {
					names = append(names, requiredFields(ft)...)
				}
				continue
			}
		}
		if !f.IsExported() || hasOption(opts, "omitempty") || hasOption(opts, "omitzero") {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	requiredCache.Store(t, names)
	return names
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}
