// Command rayhunter-check is a Swiss-army inspection tool for rayhunter
// recording stores: list entries, replay analysis offline, recover a
// manifest, or smoke-test a simulated diag device. Mirrors
// cmd/ptpcheck/main's "thin main, fat cmd package" split.
package main

import "github.com/EFForg/rayhunter-sub000/cmd/rayhunter-check/cmd"

func main() {
	cmd.Execute()
}
