// Command sitectl inspects and maintains the site document from a shell:
// show it, take and restore backups, factory reset.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
