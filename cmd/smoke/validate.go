package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/internal/systems"
)

var flagDryLoad bool

var validateCmd = &cobra.Command{
	Use:   "validate <world.yaml>",
	Short: "Check a world file",
	Long: `Check that a world file parses, names only known modules, has no
duplicate scenes or objects and uses well-formed link paths.

With --load the world is also built and torn down again, which checks
object types, properties and links for real.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&flagDryLoad, "load", false, "Build the world once to check types and links")
}

func runValidate(cmd *cobra.Command, args []string) error {
	w, err := engine.LoadWorld(args[0])
	if err != nil {
		return err
	}
	table := systems.Table()
	if err := w.Validate(table); err != nil {
		return err
	}
	if flagDryLoad {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		e := engine.New(cfg, table, nil)
		if err := e.Load(w); err != nil {
			return err
		}
		e.Shutdown()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d systems, %d links)\n", args[0], len(w.Systems), len(w.Links))
	return nil
}
