package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/EFForg/rayhunter-sub000/recordingstore"
)

func init() {
	RootCmd.AddCommand(recoverCmd)
}

var recoverCmd = &cobra.Command{
	Use:   "recover <store-dir>",
	Short: "Rebuild a manifest from the .qmdl files present in a store directory",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		store, err := recordingstore.Recover(args[0])
		if err != nil {
			log.Fatalf("recovering store: %v", err)
		}
		log.Infof("recovered %d entries", len(store.Manifest.Entries))
	},
}
