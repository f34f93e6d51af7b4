// Command posctl is the shop's admin CLI: schema migration, user management, balance
// lookups, stock corrections and manual job triggers.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "posctl: %v\n", err)
		os.Exit(1)
	}
}
