package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/passvault/internal/vaultctl"
)

func main() {

	ctx := context.Background()

	if err := vaultctl.Run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, vaultctl.ErrUsage) {
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}

}
