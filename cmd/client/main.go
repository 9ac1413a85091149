// Command client is the interactive gophauth CLI.
package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/gophauth/internal/client/cli"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
)

func main() {
	app, err := cli.NewApp(config.LoadConfig())
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	app.Run(context.Background())
}
