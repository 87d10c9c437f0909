// Command storefrontctl runs maintenance tasks against the storefront database:
// migrations, admin accounts, manual campaign sends and outbox housekeeping.
package main

import (
	"log"
	"os"
	_ "time/tzdata"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
