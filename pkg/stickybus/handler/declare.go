package handler

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/randalmurphal/stickybus/pkg/stickybus/thread"
)

// Declarer is implemented by types that list their handlers with the
// generic helpers. DeclareHandlers is called once per concrete type and
// must not depend on instance state.
//
//	func (*Chat) DeclareHandlers(d *handler.Declarations) {
//	    handler.Subscribe(d, (*Chat).OnMessage, handler.Tags("room"))
//	    handler.Produce(d, (*Chat).LastMessage, handler.Tags("room"), handler.On(thread.IO))
//	}
type Declarer interface {
	DeclareHandlers(d *Declarations)
}

// Declarations collects handler descriptors for one concrete type. The
// first invalid declaration is kept and later ones are ignored.
type Declarations struct {
	target      reflect.Type
	subscribers []*Descriptor
	producers   []*Descriptor
	err         error
}

// Option configures a declared handler.
type Option func(*declOptions)

type declOptions struct {
	tags     []string
	affinity thread.Affinity
}

// Tags registers the handler under each tag. Without it the handler uses
// DefaultTag.
func Tags(tags ...string) Option {
	return func(o *declOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// On selects the handler's thread affinity.
// Default: thread.Main
func On(a thread.Affinity) Option {
	return func(o *declOptions) {
		o.affinity = a
	}
}

// Err returns the first invalid declaration, if any.
func (d *Declarations) Err() error {
	return d.err
}

// Subscribe declares fn as a subscriber for events of type P. fn is
// normally a method expression such as (*T).OnEvent.
func Subscribe[R, P any](d *Declarations, fn func(R, P), opts ...Option) {
	if fn == nil {
		d.fail("", ReasonSignature, "nil subscriber")
		return
	}
	subscribe(d, fn, func(r R, p P) error {
		fn(r, p)
		return nil
	}, opts)
}

// SubscribeE declares fn as a subscriber whose returned error is reported
// to the bus's error handler.
func SubscribeE[R, P any](d *Declarations, fn func(R, P) error, opts ...Option) {
	if fn == nil {
		d.fail("", ReasonSignature, "nil subscriber")
		return
	}
	subscribe(d, fn, fn, opts)
}

// Produce declares fn as the producer of values of type P. A nil result
// means there is no current value.
func Produce[R, P any](d *Declarations, fn func(R) P, opts ...Option) {
	if fn == nil {
		d.fail("", ReasonSignature, "nil producer")
		return
	}
	produce(d, fn, func(r R) (P, error) {
		return fn(r), nil
	}, opts)
}

// ProduceE declares fn as a producer that may fail.
func ProduceE[R, P any](d *Declarations, fn func(R) (P, error), opts ...Option) {
	if fn == nil {
		d.fail("", ReasonSignature, "nil producer")
		return
	}
	produce(d, fn, fn, opts)
}

func subscribe[R, P any](d *Declarations, raw any, call func(R, P) error, opts []Option) {
	if d.err != nil {
		return
	}
	method, symbol := funcName(raw)
	payload := reflect.TypeFor[P]()
	o := buildOptions(opts)
	if !d.check(method, reflect.TypeFor[R](), payload, o) {
		return
	}

	d.subscribers = append(d.subscribers, &Descriptor{
		Method:   method,
		Symbol:   symbol,
		Role:     RoleSubscribe,
		Affinity: o.affinity,
		Payload:  payload,
		Tags:     distinctTags(o.tags),
		invoke: func(target, event any) error {
			return call(target.(R), event.(P))
		},
	})
}

func produce[R, P any](d *Declarations, raw any, call func(R) (P, error), opts []Option) {
	if d.err != nil {
		return
	}
	method, symbol := funcName(raw)
	payload := reflect.TypeFor[P]()
	o := buildOptions(opts)
	if !d.check(method, reflect.TypeFor[R](), payload, o) {
		return
	}

	d.producers = append(d.producers, &Descriptor{
		Method:   method,
		Symbol:   symbol,
		Role:     RoleProduce,
		Affinity: o.affinity,
		Payload:  payload,
		Tags:     distinctTags(o.tags),
		produce: func(target any) (any, error) {
			v, err := call(target.(R))
			if err != nil {
				return nil, err
			}
			if isNil(v) {
				return nil, nil
			}
			return v, nil
		},
	})
}

func (d *Declarations) check(method string, receiver, payload reflect.Type, o declOptions) bool {
	switch {
	case !d.target.AssignableTo(receiver):
		d.fail(method, ReasonSignature, fmt.Sprintf("receiver %v does not accept %v", receiver, d.target))
	case !exported(method):
		d.fail(method, ReasonNotExported, "handler methods must be exported")
	case payload.Kind() == reflect.Interface:
		d.fail(method, ReasonInterfacePayload, fmt.Sprintf("payload %v is an interface", payload))
	case !o.affinity.Valid():
		d.fail(method, ReasonAffinity, fmt.Sprintf("unknown affinity %v", o.affinity))
	default:
		return true
	}
	return false
}

func (d *Declarations) fail(method string, reason Reason, detail string) {
	if d.err != nil {
		return
	}
	d.err = &ConfigurationError{Type: d.target, Method: method, Reason: reason, Detail: detail}
}

func buildOptions(opts []Option) declOptions {
	o := declOptions{affinity: thread.Main}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// funcName returns the short and fully qualified symbol names of fn.
func funcName(fn any) (method, symbol string) {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "", ""
	}
	symbol = strings.TrimSuffix(f.Name(), "-fm")
	method = symbol
	if i := strings.LastIndex(symbol, "."); i >= 0 {
		method = symbol[i+1:]
	}
	return method, symbol
}

func exported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
