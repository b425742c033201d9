// Command opsctl prints the agency cost, roster and SLA reports.
package main

import (
	"fmt"
	"os"

	"github.com/warp/agency-engine/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "opsctl: %v\n", err)
		os.Exit(1)
	}
}
