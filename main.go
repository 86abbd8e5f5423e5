package main

import (
	"os"

	"binance-pattern-scanner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
