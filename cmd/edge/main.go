package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/choirsync/internal/buildinfo"
	"github.com/dmitrijs2005/choirsync/internal/edge"
	"github.com/dmitrijs2005/choirsync/internal/edge/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := edge.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
