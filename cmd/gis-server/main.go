// Package main is the entry point for the GIS resource server.
package main

import (
	"os"

	"github.com/datumgrid/gis-resource-server/cmd/gis-server/app"
	"github.com/datumgrid/gis-resource-server/internal/logger"
)

func main() {
	logger.Initialize()
	defer logger.Sync()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
