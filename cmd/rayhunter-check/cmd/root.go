// Package cmd implements rayhunter-check's subcommands: offline inspection
// of a recording store without running the capture daemon. Layout follows
// cmd/ptpcheck/cmd: a RootCmd plus one file per subcommand.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is rayhunter-check's entry point.
var RootCmd = &cobra.Command{
	Use:   "rayhunter-check",
	Short: "Inspect and replay rayhunter recording stores",
}

var rootVerboseFlag bool

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
}

// ConfigureVerbosity sets log verbosity based on parsed flags. Every
// subcommand's Run must call this first.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute runs the CLI, exiting non-zero on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
