// Command boxinspect prints the contents of box tree containers and event
// record stores.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
