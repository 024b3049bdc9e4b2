package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tier1/pkg/jit"
	"tier1/pkg/opcode"
)

func newOpcodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opcodes",
		Short: "List the instruction set and what tier-1 compiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			onlySupported, _ := cmd.Flags().GetBool("supported")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enabled := cfg.Opcodes(jit.Supported())

			out := cmd.OutOrStdout()
			yes := color.New(color.FgGreen).SprintFunc()
			no := color.New(color.Faint).SprintFunc()
			for _, info := range opcode.All() {
				if onlySupported && !enabled.Has(info.Code) {
					continue
				}
				mark := no("-")
				if enabled.Has(info.Code) {
					mark = yes("tier1")
				}
				fmt.Fprintf(out, "%3d  %-28s %d  %s\n", info.Code, info.Name, info.OperandCount, mark)
			}
			return nil
		},
	}
	cmd.Flags().Bool("supported", false, "only list instructions tier-1 compiles")
	return cmd
}
