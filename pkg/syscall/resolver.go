// Package syscall implements the SyscallResolver (spec.md §4.7): the
// name-to-callable registry the VM invokes through for every Syscall
// instruction. Two registration modes are supported, Direct and
// Reflective, and both funnel through the same invoke path so the
// Nil-to-absent translation at the boundary is performed exactly once.
//
// Go has no method annotations, so the "syscall implementation" marker
// spec.md §4.7 describes is modeled as a Descriptor interface: a type that
// wants reflective registration implements SyscallMethods, returning which
// of its exported methods back which HCB syscall names, the same role a
// runtime annotation would play in a language that has them. This mirrors
// the reflect.Type-keyed registry chazu-maggie's GoTypeRegistry uses to
// bridge host Go values into its VM.
package syscall

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/value"
)

// Callable is a registered syscall target, operating in native Go values
// rather than value.Value — the Nil-to-absent translation has already
// happened by the time a Callable runs, and a native nil is the absent
// marker. A single return value and an error return cover the spec's
// "return a single value, errors propagate" contract.
type Callable func(args []any) (any, error)

// Descriptor is implemented by a host object that wants its methods
// registered reflectively. SyscallMethods maps an exported method name to
// the one or more HCB syscall names it should answer to — the Go stand-in
// for an annotation carrying one or more names.
type Descriptor interface {
	SyscallMethods() map[string][]string
}

// Resolver is the VM-facing SyscallResolver.
type Resolver struct {
	mu      sync.RWMutex
	entries map[string]Callable
	sources map[string]string // syscall name -> registration identity, for idempotent re-registration
	log     *log.Logger
}

// New constructs an empty Resolver.
func New(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		entries: make(map[string]Callable),
		sources: make(map[string]string),
		log:     logger.With("component", "syscall"),
	}
}

// Register implements Direct registration: fails DuplicateName if name is
// already present.
func (r *Resolver) Register(name string, fn Callable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return hcberr.NewKindError(hcberr.DuplicateName, "syscall %q already registered", name)
	}
	r.entries[name] = fn
	r.sources[name] = "direct:" + name
	r.log.Info("registered", "name", name, "mode", "direct")
	return nil
}

// RegisterReflective implements Reflective registration per spec.md §4.7:
// instance's type is inspected via its Descriptor implementation, each
// named method is located with reflect.Value.MethodByName (which only
// ever resolves exported methods, naturally enforcing "annotated private
// methods are not registered"), and every alias it carries is registered.
// Registering the same instance a second time is idempotent: identical
// (name, method) pairs are silently skipped, while a genuine name
// collision against a different source still fails DuplicateName.
func (r *Resolver) RegisterReflective(instance any) error {
	desc, ok := instance.(Descriptor)
	if !ok {
		return fmt.Errorf("syscall: %T does not implement Descriptor", instance)
	}

	rv := reflect.ValueOf(instance)
	identityBase := instanceIdentity(rv)

	r.mu.Lock()
	defer r.mu.Unlock()

	for methodName, aliases := range desc.SyscallMethods() {
		method := rv.MethodByName(methodName)
		if !method.IsValid() {
			r.log.Warn("annotated method not found or unexported", "method", methodName)
			continue
		}
		fn := reflectiveCallable(method)
		identity := identityBase + "#" + methodName

		for _, alias := range aliases {
			if existing, ok := r.sources[alias]; ok {
				if existing == identity {
					continue
				}
				return hcberr.NewKindError(hcberr.DuplicateName, "syscall %q already registered", alias)
			}
			r.entries[alias] = fn
			r.sources[alias] = identity
			r.log.Info("registered", "name", alias, "mode", "reflective", "method", methodName)
		}
	}
	return nil
}

func instanceIdentity(rv reflect.Value) string {
	if rv.Kind() == reflect.Ptr {
		return fmt.Sprintf("ptr:%d", rv.Pointer())
	}
	return "value:" + rv.Type().String()
}

// Invoke implements spec.md §4.7's invoke(): locate the entry (failing
// NotImplemented otherwise), translate Nil args to absent (native nil),
// call the target, and translate an absent result back to Nil.
func (r *Resolver) Invoke(name string, args []value.Value) (value.Value, error) {
	r.mu.RLock()
	fn, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return value.Value{}, hcberr.NewKindError(hcberr.NotImplemented, "syscall %q not registered", name)
	}
	r.log.Debug("invoke", "name", name, "args", len(args))

	native := make([]any, len(args))
	for i, a := range args {
		native[i] = toNative(a)
	}

	result, err := fn(native)
	if err != nil {
		return value.Value{}, err
	}
	return fromNative(result), nil
}

// reflectiveCallable builds a Callable around a bound reflect.Value method
// of arbitrary signature, converting each native argument to the method's
// declared parameter type and marshaling its return values back down to a
// single (any, error) pair. Unlike a hand-written thunk per method, this
// path works for any method shape registered through Descriptor, matching
// spec.md §9's "either a direct callable or a lazily compiled thunk" note.
func reflectiveCallable(method reflect.Value) Callable {
	return func(args []any) (any, error) {
		mtype := method.Type()
		if mtype.NumIn() != len(args) {
			return nil, fmt.Errorf("syscall: method wants %d arguments, got %d", mtype.NumIn(), len(args))
		}

		in := make([]reflect.Value, len(args))
		for i, a := range args {
			paramType := mtype.In(i)
			if a == nil {
				in[i] = reflect.Zero(paramType)
				continue
			}
			av := reflect.ValueOf(a)
			switch {
			case av.Type().AssignableTo(paramType):
				in[i] = av
			case av.Type().ConvertibleTo(paramType):
				in[i] = av.Convert(paramType)
			default:
				return nil, fmt.Errorf("syscall: argument %d: cannot use %s as %s", i, av.Type(), paramType)
			}
		}

		return marshalOutputs(method.Call(in))
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func marshalOutputs(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errorType) {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if last.Type().Implements(errorType) {
			if !last.IsNil() {
				return nil, last.Interface().(error)
			}
		}
		return out[0].Interface(), nil
	}
}

func toNative(v value.Value) any {
	switch v.Kind() {
	case value.Nil:
		return nil
	case value.Bool:
		return v.Bool()
	case value.Int:
		return v.Int()
	case value.Float:
		return v.Float()
	case value.String:
		return v.Str()
	case value.Table:
		return v.TableVal()
	default:
		return nil
	}
}

func fromNative(v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.NilValue()
	case value.Value:
		return x
	case bool:
		return value.BoolValue(x)
	case int:
		return value.IntValue(int32(x))
	case int32:
		return value.IntValue(x)
	case int64:
		return value.IntValue(int32(x))
	case float32:
		return value.FloatValue(x)
	case float64:
		return value.FloatValue(float32(x))
	case string:
		return value.StringValue(x)
	case *value.TableValue:
		return value.TableValueOf(x)
	default:
		return value.NilValue()
	}
}
