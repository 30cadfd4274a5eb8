package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"focusflow/internal/config"
	"focusflow/internal/serverapp"
)

func main() {
	configPath := flag.String("config", "focusflow.yml", "path to config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "focusflow",
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatal("load config", "path", *configPath, "err", err)
		}
		cfg = config.Default()
	}
	config.ApplyEnv(cfg)

	handler, err := serverapp.NewHandler(serverapp.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("build server", "err", err)
	}

	logger.Info("listening", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, handler); err != nil {
		logger.Fatal("serve", "err", err)
	}
}
