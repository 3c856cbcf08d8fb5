package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/term"

	"github.com/wippyai/wasm-host/exports"
)

type runFlags struct {
	text        string
	textSet     bool
	readText    bool
	interactive bool
}

func newRunCommand(e *env) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <module> [export] [args...]",
		Short: "Call an export of a module",
		Long: `Load a module and call one export. Numeric arguments are converted to
the export's parameter types. With --text the string is written to guest
memory and its (ptr, len) pair is passed ahead of the other arguments.

Modules may be paths, http(s) URLs, data: URIs or demo:<name>.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.textSet = cmd.Flags().Changed("text")
			if flags.interactive {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("interactive mode needs a terminal")
				}
				return runInteractive(cmd.Context(), e, args[0])
			}
			return run(cmd.Context(), cmd.OutOrStdout(), e, args, flags)
		},
	}
	cmd.Flags().StringVar(&flags.text, "text", "", "text argument passed as (ptr, len)")
	cmd.Flags().BoolVar(&flags.readText, "read-text", false, "treat the i32 result as a pointer to NUL-terminated text")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "interactive mode with TUI")
	return cmd
}

func run(ctx context.Context, w io.Writer, e *env, args []string, flags runFlags) error {
	inst, err := e.load(ctx, args[0])
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	reg, err := exports.Resolve(inst)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		printExports(w, args[0], reg)
		return nil
	}

	name := args[1]
	export, ok := reg.Lookup(name)
	if !ok {
		return fmt.Errorf("module exports no function %q", name)
	}

	m, err := inst.Marshaler()
	if err != nil {
		return err
	}

	var params []uint64
	if flags.textSet {
		region, err := m.WriteText(0, flags.text)
		if err != nil {
			return err
		}
		defer func() { _ = m.Zero(region) }()
		params = append(params, region.Params()...)
	}

	rest := args[2:]
	if want := len(export.Params) - len(params); len(rest) != want {
		return fmt.Errorf("%s%s takes %d more argument(s), got %d", name, export.Signature(), want, len(rest))
	}
	for i, raw := range rest {
		v, err := encodeArg(raw, export.Params[len(params)])
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		params = append(params, v)
	}

	results, err := reg.Call(ctx, name, params...)
	if err != nil {
		return err
	}

	if flags.readText && len(results) == 1 && export.Results[0] == api.ValueTypeI32 {
		out, err := m.ReadText(api.DecodeU32(results[0]), 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
		return nil
	}
	if flags.textSet {
		out, err := m.ReadText(0, uint32(len(flags.text))+1)
		if err == nil {
			fmt.Fprintf(w, "text: %s\n", out)
		}
	}
	fmt.Fprintf(w, "result: %s\n", formatResults(results, export.Results))
	return nil
}

func newExportsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "exports <module>",
		Short: "List the functions a module exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inst, err := e.load(ctx, args[0])
			if err != nil {
				return err
			}
			defer inst.Close(ctx)
			reg, err := exports.Resolve(inst)
			if err != nil {
				return err
			}
			printExports(cmd.OutOrStdout(), args[0], reg)
			return nil
		},
	}
}

func printExports(w io.Writer, name string, reg *exports.Registry) {
	fmt.Fprintf(w, "Module: %s\n\nExported functions:\n", name)
	for _, n := range reg.Names() {
		e, _ := reg.Lookup(n)
		fmt.Fprintf(w, "  %s%s\n", n, e.Signature())
	}
}

func encodeArg(raw string, t api.ValueType) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
			return 0, fmt.Errorf("%q is not an i32", raw)
		}
		return uint64(uint32(v)), nil
	case api.ValueTypeI64:
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an i64", raw)
		}
		return uint64(v), nil
	case api.ValueTypeF32:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return 0, fmt.Errorf("%q is not an f32", raw)
		}
		return api.EncodeF32(float32(v)), nil
	case api.ValueTypeF64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an f64", raw)
		}
		return api.EncodeF64(v), nil
	default:
		return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(t))
	}
}

func formatResults(results []uint64, types []api.ValueType) string {
	if len(results) == 0 {
		return "()"
	}
	out := make([]string, len(results))
	for i, r := range results {
		switch types[i] {
		case api.ValueTypeI32:
			out[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		case api.ValueTypeI64:
			out[i] = strconv.FormatInt(int64(r), 10)
		case api.ValueTypeF32:
			out[i] = strconv.FormatFloat(float64(api.DecodeF32(r)), 'g', -1, 32)
		case api.ValueTypeF64:
			out[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			out[i] = fmt.Sprintf("%#x", r)
		}
	}
	return strings.Join(out, ", ")
}
