package main

import (
	"os"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
