package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/profile"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

func newDemoCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in demo guests",
	}

	var key int32
	var decrypt bool
	caesar := &cobra.Command{
		Use:   "caesar <text>",
		Short: "Shift lowercase letters with the caesar guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			values, err := letterIndices(args[0])
			if err != nil {
				return err
			}
			inst, err := e.load(ctx, demoPrefix+"caesar")
			if err != nil {
				return err
			}
			defer inst.Close(ctx)

			c, err := profile.BindCaesar(inst)
			if err != nil {
				return err
			}
			shift := c.Encrypt
			if decrypt {
				shift = c.Decrypt
			}
			out, err := shift(ctx, values, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), letters(out))
			return nil
		},
	}
	caesar.Flags().Int32VarP(&key, "key", "k", 3, "shift")
	caesar.Flags().BoolVarP(&decrypt, "decrypt", "d", false, "shift backwards")

	reverse := &cobra.Command{
		Use:   "reverse <text>",
		Short: "Reverse text and greet with the reverse guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inst, err := e.load(ctx, demoPrefix+"reverse")
			if err != nil {
				return err
			}
			defer inst.Close(ctx)

			r, err := profile.BindReverser(inst)
			if err != nil {
				return err
			}
			out, err := r.Reverse(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			g, err := profile.BindGreeter(inst)
			if err != nil {
				return err
			}
			greeting, err := g.Greet(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), greeting)
			return nil
		},
	}

	words := &cobra.Command{
		Use:   "words",
		Short: "Print the string table exported by the words guest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inst, err := e.load(ctx, demoPrefix+"words")
			if err != nil {
				return err
			}
			defer inst.Close(ctx)

			ptr, err := inst.Call(ctx, "list")
			if err != nil {
				return err
			}
			n, err := inst.Call(ctx, "count")
			if err != nil {
				return err
			}
			m, err := inst.Marshaler()
			if err != nil {
				return err
			}
			list, err := m.ReadStringTable(api.DecodeU32(ptr[0]), api.DecodeU32(n[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(list, "\n"))
			return nil
		},
	}

	async := &cobra.Command{
		Use:   "async",
		Short: "Trigger a deferred host callback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inst, err := e.load(ctx, demoPrefix+"async")
			if err != nil {
				return err
			}
			defer inst.Close(ctx)

			a, err := profile.BindAsync(inst)
			if err != nil {
				return err
			}
			if err := a.Run(ctx); err != nil {
				return err
			}
			res, err := a.Call(ctx, "result")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "callback delivered %d\n", api.DecodeI32(res[0]))
			return nil
		},
	}

	cmd.AddCommand(caesar, reverse, words, async)
	return cmd
}

func letterIndices(s string) ([]int32, error) {
	out := make([]int32, 0, len(s))
	for i, r := range strings.ToLower(s) {
		idx := strings.IndexRune(alphabet, r)
		if idx < 0 {
			return nil, fmt.Errorf("character %q at %d is not a letter", r, i)
		}
		out = append(out, int32(idx))
	}
	return out, nil
}

func letters(values []int32) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteByte(alphabet[((v%26)+26)%26])
	}
	return b.String()
}
