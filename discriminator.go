package apijson

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	json "github.com/eznix86/apijson/jsoncompat"
)

// DiscriminatorValue returns the value of field in the JSON object raw.
// Non-string values are returned as their JSON text.
func DiscriminatorValue(raw []byte, field string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", ErrNotObject
	}

	value, ok := fields[field]
	if !ok || string(value) == "null" {
		return "", fmt.Errorf("%w: <%s>", ErrMissingDiscriminator, field)
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	return string(value), nil
}

// TypeRegistry maps discriminator values to model types. Lookups ignore case.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]reflect.Type)}
}

// Register binds value to the type of prototype. Pointer prototypes register their element type.
func (r *TypeRegistry) Register(value string, prototype any) {
	typ := reflect.TypeOf(prototype)
	if typ == nil {
		panic("apijson: Register with nil prototype")
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		r.types = make(map[string]reflect.Type)
	}
	r.types[strings.ToUpper(value)] = typ
}

func (r *TypeRegistry) Lookup(value string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types[strings.ToUpper(value)]
	if !ok {
		return nil, fmt.Errorf("%w of name: <%s>", ErrUnknownDiscriminator, value)
	}
	return typ, nil
}

// DeserializeDiscriminated reads field from body, allocates the registered
// model type and decodes body into it. The result is a pointer to the model.
func (j *JSON) DeserializeDiscriminated(body string, field string, reg *TypeRegistry) (any, error) {
	value, err := DiscriminatorValue([]byte(body), field)
	if err != nil {
		return nil, err
	}

	typ, err := reg.Lookup(value)
	if err != nil {
		return nil, err
	}

	target := reflect.New(typ)
	if err := j.Unmarshal([]byte(body), target.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return target.Interface(), nil
}
