// smoke runs simulation worlds on the component engine.
//
// Usage:
//
//	smoke run <world.yaml>        - Load a world and run frames
//	smoke validate <world.yaml>   - Check a world file without running it
//	smoke types                   - List the object types of every module
//
// Global flags:
//
//	--config <path>  - Engine config file (defaults apply when empty)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfig string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Smoke - a parallel, component-based simulation engine",
	Long: `Smoke loads a world of systems, scenes and objects from YAML, links
them through change notifications and runs their tasks frame by frame.

Examples:
  smoke validate worlds/farm.yaml
  smoke run worlds/farm.yaml --frames 600
  smoke run worlds/farm.yaml --config configs/smoke.yaml --inspect
  smoke types`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to engine config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(typesCmd)
}
