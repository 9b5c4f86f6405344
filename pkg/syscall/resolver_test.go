package syscall_test

import (
	"errors"
	"testing"

	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/syscall"
	"github.com/tsukikage/hcbvm/pkg/value"
)

func TestDirectRegisterAndInvoke(t *testing.T) {
	r := syscall.New(nil)
	err := r.Register("double", func(args []any) (any, error) {
		return args[0].(int32) * 2, nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	out, err := r.Invoke("double", []value.Value{value.IntValue(21)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out.Kind() != value.Int || out.Int() != 42 {
		t.Fatalf("Invoke() = %v, want Int(42)", out)
	}
}

func TestDirectRegisterDuplicateNameFails(t *testing.T) {
	r := syscall.New(nil)
	noop := func(args []any) (any, error) { return nil, nil }
	if err := r.Register("dup", noop); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	err := r.Register("dup", noop)
	if err == nil {
		t.Fatal("expected second Register() to fail")
	}
	var ke *hcberr.KindError
	if !errors.As(err, &ke) || ke.Kind != hcberr.DuplicateName {
		t.Fatalf("err = %v, want KindError{Kind: DuplicateName}", err)
	}
}

func TestInvokeUnregisteredNameFails(t *testing.T) {
	r := syscall.New(nil)
	_, err := r.Invoke("missing", nil)
	if err == nil {
		t.Fatal("expected Invoke() to fail")
	}
	var ke *hcberr.KindError
	if !errors.As(err, &ke) || ke.Kind != hcberr.NotImplemented {
		t.Fatalf("err = %v, want KindError{Kind: NotImplemented}", err)
	}
}

// property 8: Nil args arrive at the target as native nil (absent), and a
// native nil result comes back out as Nil.
func TestNilAbsentRoundTrip(t *testing.T) {
	r := syscall.New(nil)
	var gotNil bool
	err := r.Register("maybe", func(args []any) (any, error) {
		gotNil = args[0] == nil
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	out, err := r.Invoke("maybe", []value.Value{value.NilValue()})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !gotNil {
		t.Fatal("Nil argument did not translate to native nil")
	}
	if !out.IsNil() {
		t.Fatalf("Invoke() = %v, want Nil", out)
	}
}

// host is a reflective Descriptor exposing two aliases for one method and
// a second, error-returning method.
type host struct {
	calls []string
}

func (h *host) Greet(name string) (string, error) {
	h.calls = append(h.calls, name)
	return "hello, " + name, nil
}

func (h *host) Boom() (any, error) {
	return nil, errors.New("boom")
}

func (h *host) unexported() string { return "should never be reachable" }

func (h *host) SyscallMethods() map[string][]string {
	return map[string][]string{
		"Greet": {"greet", "hail"},
		"Boom":  {"boom"},
	}
}

func TestReflectiveRegisterAndInvoke(t *testing.T) {
	h := &host{}
	r := syscall.New(nil)
	if err := r.RegisterReflective(h); err != nil {
		t.Fatalf("RegisterReflective() error = %v", err)
	}

	for _, name := range []string{"greet", "hail"} {
		out, err := r.Invoke(name, []value.Value{value.StringValue("ada")})
		if err != nil {
			t.Fatalf("Invoke(%q) error = %v", name, err)
		}
		if out.Kind() != value.String || out.Str() != "hello, ada" {
			t.Fatalf("Invoke(%q) = %v, want String(hello, ada)", name, out)
		}
	}
	if len(h.calls) != 2 {
		t.Fatalf("h.calls = %v, want 2 entries", h.calls)
	}

	if _, err := r.Invoke("boom", nil); err == nil {
		t.Fatal("expected boom syscall to propagate its error")
	}

	if _, err := r.Invoke("unexported", nil); err == nil {
		t.Fatal("private method must not have been registered under any name")
	}
}

// property 9: registering the same instance twice is idempotent, but a
// genuine name collision against a different source still fails.
func TestReflectiveReregisterIsIdempotentDistinctCollisionFails(t *testing.T) {
	h := &host{}
	r := syscall.New(nil)
	if err := r.RegisterReflective(h); err != nil {
		t.Fatalf("first RegisterReflective() error = %v", err)
	}
	if err := r.RegisterReflective(h); err != nil {
		t.Fatalf("re-registering the same instance should be idempotent, got error = %v", err)
	}

	noop := func(args []any) (any, error) { return nil, nil }
	err := r.Register("greet", noop)
	if err == nil {
		t.Fatal("expected a distinct source colliding on an already-registered name to fail")
	}
	var ke *hcberr.KindError
	if !errors.As(err, &ke) || ke.Kind != hcberr.DuplicateName {
		t.Fatalf("err = %v, want KindError{Kind: DuplicateName}", err)
	}
}
