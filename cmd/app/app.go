package main

import (
	"os"

	"github.com/DRSN-tech/product-vision/internal/app"
	config "github.com/DRSN-tech/product-vision/internal/cfg"
	"github.com/DRSN-tech/product-vision/pkg/logger"
)

// @title product-vision API
// @version 1.0
// @description Векторы признаков фотографий продуктов и их кластеризация.
// @BasePath /api/v1
func main() {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
