package main

import (
	"context"
	"os"

	"github.com/custodia-labs/finplan-core/internal/adapters/driving/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(context.Background(), version); err != nil {
		os.Exit(1)
	}
}
