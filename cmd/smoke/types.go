package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/internal/systems"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List modules and the object types they create",
	Args:  cobra.NoArgs,
	RunE:  runTypes,
}

func runTypes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	table := systems.Table()
	types, err := engine.Discover(cfg, table, nil)
	if err != nil {
		return err
	}

	maxLen := len("Module")
	for _, name := range table.Names() {
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  %-*s  %s\n", maxLen, "Module", "Object types")
	fmt.Fprintf(out, "  %-*s  %s\n", maxLen, "------", "------------")
	for _, name := range table.Names() {
		fmt.Fprintf(out, "  %-*s  %s\n", maxLen, name, strings.Join(types[name], ", "))
	}
	return nil
}
