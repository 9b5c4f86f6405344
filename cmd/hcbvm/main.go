// Command hcbvm loads a compiled HCB script and either disassembles or
// executes it, in the same flag.BoolVar/flag.StringVar style as the
// teacher's own cmd/main.go driver.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/tsukikage/hcbvm/internal/logger"
	"github.com/tsukikage/hcbvm/pkg/color"
	"github.com/tsukikage/hcbvm/pkg/disasm"
	"github.com/tsukikage/hcbvm/pkg/hcberr"
	"github.com/tsukikage/hcbvm/pkg/metadata"
	"github.com/tsukikage/hcbvm/pkg/reader"
	"github.com/tsukikage/hcbvm/pkg/syscall"
	"github.com/tsukikage/hcbvm/pkg/textenc"
	"github.com/tsukikage/hcbvm/pkg/vm"
)

type options struct {
	verbose      bool
	disassemble  bool
	encoding     string
	noColor      bool
	maxSteps     int
	maxCallDepth int
}

func main() {
	var opt options

	flag.BoolVar(&opt.verbose, "v", false, "Verbose mode")
	flag.BoolVar(&opt.disassemble, "d", false, "Disassemble only, do not execute")
	flag.StringVar(&opt.encoding, "e", textenc.Default, "Text encoding for string decoding")
	flag.BoolVar(&opt.noColor, "n", false, "No color")
	flag.IntVar(&opt.maxSteps, "max-steps", 0, "Maximum instructions to dispatch before aborting (0 = unlimited)")
	flag.IntVar(&opt.maxCallDepth, "max-call-depth", 0, "Maximum call nesting depth before aborting (0 = unlimited)")

	flag.Parse()
	args := flag.Args()

	logger.Init(opt.verbose, opt.noColor)
	if opt.noColor {
		color.EnableColor(false)
	}

	if len(args) == 0 {
		log.Fatal("No input file provided", "usage", fmt.Sprintf("%s [options] <script.hcb>", os.Args[0]))
	}

	if err := run(args[0], opt); err != nil {
		log.Fatal("hcbvm failed", "error", err)
	}
}

func run(path string, opt options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	enc, err := textenc.Lookup(opt.encoding)
	if err != nil {
		return err
	}

	r := reader.New(data, enc)
	meta, err := metadata.Parse(r)
	if err != nil {
		return err
	}

	if opt.disassemble {
		return disasm.Listing(os.Stdout, r, meta)
	}

	resolver := defaultResolver()
	ctxOpts := []vm.Option{}
	if opt.maxSteps > 0 {
		ctxOpts = append(ctxOpts, vm.WithMaxSteps(opt.maxSteps))
	}
	if opt.maxCallDepth > 0 {
		ctxOpts = append(ctxOpts, vm.WithMaxCallDepth(opt.maxCallDepth))
	}

	ctx := vm.New(r, meta, resolver, log.Default(), ctxOpts...)
	if err := ctx.Execute(); err != nil {
		var rerr *hcberr.RuntimeError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%s at pc=%d: %s", rerr.Kind, rerr.PC, rerr.Msg)
		}
		return err
	}

	if rv, ok := ctx.ReturnValue(); ok {
		fmt.Println(rv.String())
	}
	return nil
}

// defaultResolver registers the host-facing syscalls the standalone CLI
// (not an embedding host) can usefully provide on its own: printing to
// stdout. A real embedder supplies its own Resolver with its own syscalls
// instead of this one.
func defaultResolver() *syscall.Resolver {
	r := syscall.New(log.Default())
	_ = r.Register("print", func(args []any) (any, error) {
		if len(args) > 0 {
			fmt.Println(args[0])
		} else {
			fmt.Println()
		}
		return nil, nil
	})
	return r
}
