// billingctl parses billing data locally and inspects the Stripe catalog.
//
// Usage:
//
//	billingctl sniff prices.csv
//	billingctl parse --currency EUR prices.xlsx
//	billingctl export --format xlsx --out items.xlsx prices.txt
//	billingctl catalog --limit 20
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	loadDotEnv(os.Stderr)

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads .env files when present. A missing file is silent.
func loadDotEnv(w io.Writer, files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "Warning: failed to load .env file: %v\n", err)
	}
}
