package vm_test

import (
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/tsukikage/hcbvm/pkg/metadata"
	"github.com/tsukikage/hcbvm/pkg/opcode"
	"github.com/tsukikage/hcbvm/pkg/reader"
	"github.com/tsukikage/hcbvm/pkg/syscall"
	"github.com/tsukikage/hcbvm/pkg/value"
	"github.com/tsukikage/hcbvm/pkg/vm"
)

// realResolver wires an actual pkg/syscall.Resolver with three fake host
// syscalls (print, add_two, identity), exercising the full
// Call -> Syscall -> return-value path against the real Invoker
// implementation rather than the vm package's own bare-bones test double.
func realResolver(t *testing.T) *syscall.Resolver {
	t.Helper()
	r := syscall.New(nil)

	var printed []string
	if err := r.Register("print", func(args []any) (any, error) {
		printed = append(printed, args[0].(string))
		return nil, nil
	}); err != nil {
		t.Fatalf("Register(print) error = %v", err)
	}
	if err := r.Register("add_two", func(args []any) (any, error) {
		return args[0].(int32) + args[1].(int32), nil
	}); err != nil {
		t.Fatalf("Register(add_two) error = %v", err)
	}
	if err := r.Register("identity", func(args []any) (any, error) {
		return args[0], nil
	}); err != nil {
		t.Fatalf("Register(identity) error = %v", err)
	}
	return r
}

func TestIntegrationSyscallAddTwo(t *testing.T) {
	resolver := realResolver(t)
	code := join(
		opInit(0, 0),
		opS32(opcode.PushI32, 2),
		opS32(opcode.PushI32, 3),
		opU16(opcode.Syscall, 0),
		op(opcode.PushReturn),
		op(opcode.RetV),
	)
	ctx := run(t, code, []syscallDecl{{name: "add_two", argCount: 2}}, resolver)
	rv, ok := ctx.ReturnValue()
	if !ok || rv.Kind() != value.Int || rv.Int() != 5 {
		t.Fatalf("ReturnValue() = %v, %v, want Int(5)", rv, ok)
	}
}

func TestIntegrationSyscallIdentityNilRoundTrip(t *testing.T) {
	resolver := realResolver(t)
	code := join(
		opInit(0, 0),
		op(opcode.PushNil),
		opU16(opcode.Syscall, 0),
		op(opcode.PushReturn),
		op(opcode.RetV),
	)
	ctx := run(t, code, []syscallDecl{{name: "identity", argCount: 1}}, resolver)
	rv, ok := ctx.ReturnValue()
	if !ok || !rv.IsNil() {
		t.Fatalf("ReturnValue() = %v, %v, want Nil", rv, ok)
	}
}

func TestIntegrationCallDepthGuard(t *testing.T) {
	buf := buildImage(join(opInit(0, 0), opAddr(opcode.Call, 4)), nil)
	r := reader.New(buf, unicode.UTF8)
	meta, err := metadata.Parse(r)
	if err != nil {
		t.Fatalf("metadata.Parse() error = %v", err)
	}
	ctx := vm.New(r, meta, nil, nil, vm.WithMaxCallDepth(4))
	if err := ctx.Execute(); err == nil {
		t.Fatal("expected infinite self-recursion to be stopped by the call depth guard")
	}
}

func TestIntegrationMaxStepsGuard(t *testing.T) {
	buf := buildImage(join(opInit(0, 0), opAddr(opcode.Jmp, 4)), nil)
	r := reader.New(buf, unicode.UTF8)
	meta, err := metadata.Parse(r)
	if err != nil {
		t.Fatalf("metadata.Parse() error = %v", err)
	}
	ctx := vm.New(r, meta, nil, nil, vm.WithMaxSteps(100))
	if err := ctx.Execute(); err == nil {
		t.Fatal("expected an infinite jump loop to be stopped by the max steps guard")
	}
}
