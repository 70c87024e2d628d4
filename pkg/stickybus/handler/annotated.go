package handler

import (
	"fmt"
	"reflect"

	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// Annotated is implemented by types that name their handler methods and
// leave signature checking to reflection. Declarer is preferred when both
// are implemented.
//
//	func (*Legacy) BusAnnotations() []handler.Annotation {
//	    return []handler.Annotation{
//	        {Method: "OnTick", Role: handler.RoleSubscribe, Tags: []string{"clock"}},
//	    }
//	}
type Annotated interface {
	BusAnnotations() []Annotation
}

// Annotation names one handler method.
type Annotation struct {
	Method   string
	Role     Role
	Tags     []string
	Affinity thread.Affinity
}

var errorType = reflect.TypeFor[error]()

func annotationDescriptor(t reflect.Type, a Annotation) (*Descriptor, error) {
	fail := func(reason Reason, format string, args ...any) error {
		return &ConfigurationError{Type: t, Method: a.Method, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	if !exported(a.Method) {
		return nil, fail(ReasonNotExported, "handler methods must be exported")
	}
	m, ok := t.MethodByName(a.Method)
	if !ok {
		return nil, fail(ReasonUnknownMethod, "no method %s in the method set of %v", a.Method, t)
	}
	if !a.Affinity.Valid() {
		return nil, fail(ReasonAffinity, "unknown affinity %v", a.Affinity)
	}

	mt := m.Type
	desc := &Descriptor{
		Method:   a.Method,
		Symbol:   t.String() + "." + a.Method,
		Role:     a.Role,
		Affinity: a.Affinity,
		Tags:     distinctTags(a.Tags),
	}

	switch a.Role {
	case RoleSubscribe:
		if mt.NumIn() != 2 || mt.IsVariadic() {
			return nil, fail(ReasonArity, "subscribers take exactly one parameter, got %d", mt.NumIn()-1)
		}
		param := mt.In(1)
		if param.Kind() == reflect.Interface {
			return nil, fail(ReasonInterfacePayload, "payload %v is an interface", param)
		}
		if mt.NumOut() > 1 || (mt.NumOut() == 1 && mt.Out(0) != errorType) {
			return nil, fail(ReasonSignature, "subscribers return nothing or error")
		}
		desc.Payload = param
		desc.invoke = func(target, event any) error {
			out := m.Func.Call([]reflect.Value{reflect.ValueOf(target), reflect.ValueOf(event)})
			if len(out) == 1 && !out[0].IsNil() {
				return out[0].Interface().(error)
			}
			return nil
		}

	case RoleProduce:
		if mt.NumIn() != 1 {
			return nil, fail(ReasonArity, "producers take no parameters, got %d", mt.NumIn()-1)
		}
		if mt.NumOut() == 0 {
			return nil, fail(ReasonNoReturn, "producers must return a value")
		}
		result := mt.Out(0)
		if result.Kind() == reflect.Interface {
			return nil, fail(ReasonInterfacePayload, "payload %v is an interface", result)
		}
		if mt.NumOut() > 2 || (mt.NumOut() == 2 && mt.Out(1) != errorType) {
			return nil, fail(ReasonSignature, "producers return (T) or (T, error)")
		}
		desc.Payload = result
		desc.produce = func(target any) (any, error) {
			out := m.Func.Call([]reflect.Value{reflect.ValueOf(target)})
			if len(out) == 2 && !out[1].IsNil() {
				return nil, out[1].Interface().(error)
			}
			v := out[0].Interface()
			if isNil(v) {
				return nil, nil
			}
			return v, nil
		}

	default:
		return nil, fail(ReasonSignature, "unknown role %v", a.Role)
	}

	return desc, nil
}
