package main

import (
	"context"
	"log"

	"github.com/clinmesh/clinsync/internal/config"
	"github.com/clinmesh/clinsync/internal/node"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := node.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
