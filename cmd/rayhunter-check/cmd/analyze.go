package cmd

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/analyzers/imsiexposure"
	"github.com/EFForg/rayhunter-sub000/analyzers/nullcipher"
	"github.com/EFForg/rayhunter-sub000/analysisreplay"
	"github.com/EFForg/rayhunter-sub000/recordingstore"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

// toolVersion matches cmd/rayhunter-daemon's; this tool writes no manifest
// entries of its own, it only stamps the report's runtime metadata.
const toolVersion = "0.1.0"

func init() {
	RootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <store-dir> <entry-name>",
	Short: "Re-run the analyzer harness over an existing recording",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		store, err := recordingstore.Load(args[0])
		if err != nil {
			log.Fatalf("loading store: %v", err)
		}

		harness := analyzerharness.New(prometheus.NewRegistry(), rrcie.NoopDecoder{}, toolVersion,
			nullcipher.Analyzer{}, imsiexposure.Analyzer{})

		var storeMu sync.RWMutex
		if err := analysisreplay.Replay(&storeMu, store, harness, args[1]); err != nil {
			log.Fatalf("replaying %q: %v", args[1], err)
		}
		log.Infof("wrote analysis report for %q", args[1])
	},
}
