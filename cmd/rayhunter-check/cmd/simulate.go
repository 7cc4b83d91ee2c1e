package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/EFForg/rayhunter-sub000/diagdevice"
)

var (
	simulateBaud  int
	simulateCount int
)

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simulateBaud, "baud", 115200, "Serial baud rate")
	simulateCmd.Flags().IntVar(&simulateCount, "count", 1, "Number of containers to read before exiting")
}

// simulateCmd exercises diagdevice against a serial-backed stand-in (a
// loopback pty or a bench device feeding canned diag traffic) without
// touching the real /dev/diag ioctl path. Useful for bring-up on a
// development machine, mirroring sa53fw's serial-first workflow.
var simulateCmd = &cobra.Command{
	Use:   "simulate <serial-path>",
	Short: "Read containers from a serial-backed simulated diag device",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		driver, err := diagdevice.OpenSimulated(args[0], simulateBaud)
		if err != nil {
			log.Fatalf("opening simulated device: %v", err)
		}
		defer driver.Close()

		for i := 0; i < simulateCount; i++ {
			container, err := driver.NextContainer()
			if err != nil {
				log.Fatalf("reading container %d: %v", i, err)
			}
			fmt.Printf("container %d: data_type=%d messages=%d\n", i, container.DataType, len(container.Messages))
		}
	},
}
