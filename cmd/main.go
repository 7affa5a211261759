package main

import (
	"github.com/tably/ingest-svc/internal/app"
	"github.com/tably/ingest-svc/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
