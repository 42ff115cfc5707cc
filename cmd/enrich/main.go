package main

import (
	"fmt"
	"os"

	"github.com/blackmichael/social-enrichment/internal/config"
)

func main() {
	cfg, err := config.LoadInstagram()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
