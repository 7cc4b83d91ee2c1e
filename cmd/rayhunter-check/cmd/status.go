package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/EFForg/rayhunter-sub000/recordingstore"
)

func init() {
	RootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <store-dir>",
	Short: "List a recording store's entries",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		store, err := recordingstore.Load(args[0])
		if err != nil {
			log.Fatalf("loading store: %v", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"name", "start", "qmdl bytes", "analysis bytes", "current"})
		for _, e := range store.Manifest.Entries {
			current := ""
			if store.IsCurrentEntry(e.Name) {
				current = "*"
			}
			table.Append([]string{
				e.Name,
				e.StartTime.Format("2006-01-02T15:04:05Z07:00"),
				fmt.Sprintf("%d", e.QmdlSizeBytes),
				fmt.Sprintf("%d", e.AnalysisSizeBytes),
				current,
			})
		}
		table.Render()
	},
}
