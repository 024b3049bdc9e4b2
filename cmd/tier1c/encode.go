package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"tier1/pkg/compiledfile"
	"tier1/pkg/method"
	"tier1/pkg/opcode"
)

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode OPS...",
		Short: "Write a compiled file from textual instructions",
		Long: `Each argument is one instruction with its operands, for example
  tier1c encode --stack 2 -o two.t1 "push_int 2" ret`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			name, _ := flags.GetString("name")
			required, _ := flags.GetInt("args")
			locals, _ := flags.GetInt("locals")
			stack, _ := flags.GetInt("stack")
			output, _ := flags.GetString("output")

			ins, err := opcode.Parse(args)
			if err != nil {
				return err
			}
			m := &method.Method{
				Name:         name,
				RequiredArgs: required,
				Locals:       max(locals, required),
				StackDepth:   stack,
				Bytecode:     opcode.Encode(ins),
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return compiledfile.Write(w, m)
		},
	}
	cmd.Flags().String("name", "main", "method name")
	cmd.Flags().Int("args", 0, "required argument count")
	cmd.Flags().Int("locals", 0, "local variable count, at least --args")
	cmd.Flags().Int("stack", 1, "operand stack depth")
	cmd.Flags().StringP("output", "o", "", "output file, stdout if empty")
	return cmd
}
