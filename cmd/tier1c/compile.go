package main

import (
	"encoding/hex"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tier1/pkg/errors"
	"tier1/pkg/jit"
)

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a method and dump its machine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMethod(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			c := jit.NewCompiler(m, s.options())
			if !c.Compile() {
				reason, ip := errors.Reason(c.Err())
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s at ip %d: %s\n",
					color.YellowString("bailout"), m.Name, ip, reason)
				return c.Err()
			}
			fn := c.Function()
			defer fn.Release()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %d bytes, frame %d bytes\n",
				color.GreenString("compiled"), m.Name, c.Size(), fn.Frame.Total())
			fmt.Fprint(out, hex.Dump(fn.Bytes()))
			return nil
		},
	}
}
