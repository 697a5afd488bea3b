package eventbus

import (
	"reflect"
)

// NamedEvent lets an event type choose its routing name instead of the derived
// type name.
type NamedEvent interface {
	EventName() string
}

// EventName returns the routing name for an event value.
//
// Values implementing NamedEvent use their own name. Otherwise the name is the
// fully qualified type name (import path, dot, type name), with pointers
// dereferenced, so *T and T route to the same handlers.
func EventName(event any) string {
	if n, ok := event.(NamedEvent); ok {
		return n.EventName()
	}
	if event == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(event)
	if v.Kind() != reflect.Pointer {
		// Pointer-receiver EventName methods are not in T's method set.
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		if n, ok := p.Interface().(NamedEvent); ok {
			return n.EventName()
		}
	}
	return typeName(v.Type())
}

// NameOf returns the routing name for event type E without needing a value.
func NameOf[E any]() string {
	t := reflect.TypeFor[E]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n, ok := reflect.New(t).Interface().(NamedEvent); ok {
		return n.EventName()
	}
	return typeName(t)
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
