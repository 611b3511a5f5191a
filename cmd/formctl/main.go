// Command formctl inspects orders and recorded form submissions and can replay a submission
// from the shell.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultCLI()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
