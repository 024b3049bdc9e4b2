package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tier1/pkg/helpers"
	"tier1/pkg/jit"
	"tier1/pkg/tagged"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE [ARGS...]",
		Short: "Compile a method and call it with fixnum arguments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]tagged.Value, 0, len(args)-1)
			for _, a := range args[1:] {
				n, err := strconv.ParseInt(a, 10, 63)
				if err != nil {
					return fmt.Errorf("argument %q: %w", a, err)
				}
				values = append(values, tagged.Fixnum(n))
			}

			m, err := loadMethod(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rt := jit.NewRuntime(s.options())
			defer rt.Free()
			fn, err := rt.Compile(m)
			if err != nil {
				return err
			}

			stack, err := s.arena.Stack(s.cfg.Arena.StackSize)
			if err != nil {
				return err
			}
			pack, err := jit.PackArguments(s.arena, tagged.Nil, tagged.Nil, values...)
			if err != nil {
				return err
			}
			result, err := fn.Call(stack, s.rt.VM(), 0, 0, 0, pack)
			if err != nil {
				return err
			}

			for k := helpers.Kind(0); k < helpers.NumKinds; k++ {
				if n := s.rt.Calls(k); n > 0 {
					s.log.Debug().Int("calls", n).Msgf("helper %s", k)
				}
			}
			out := cmd.OutOrStdout()
			if result == tagged.Failure {
				fmt.Fprintln(out, color.RedString("failed"))
				return nil
			}
			fmt.Fprintln(out, result)
			return nil
		},
	}
}
