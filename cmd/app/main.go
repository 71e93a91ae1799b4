package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"GridCast/internal/di"
	"GridCast/pkg/config"
)

const usage = `usage: gridcast <command> [flags]

commands:
  forecast   run one generation cycle synchronously (-date YYYY-MM-DD)
  scheduler  start the daily recurring trigger
  api        start the read API server
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	date := fs.String("date", "", "generation date YYYY-MM-DD (forecast only, default today)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s storage=%s", cfg.Environment, cfg.Storage.Type)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	switch command {
	case "forecast":
		err = app.RunForecast(*date)
	case "scheduler":
		err = app.RunScheduler()
	case "api":
		err = app.RunAPI()
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
