// Command signup serves the sign-up page.
package main

import (
	"os"

	"github.com/livetemplate/signup/cmd/signup/cmd"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
