// Command forge compiles a semantic convention registry: it fetches a
// registry and its dependencies, resolves them through the seven-pass
// algorithm, and can check, serialise, or generate artifacts from the
// result.
package main

import "os"

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
