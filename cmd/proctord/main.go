// Command proctord runs the proctoring daemon: it owns the database, the
// evidence store, the analysis pool, and the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"proctor/internal/config"
	"proctor/internal/daemon"
	"proctor/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Outputs: []string{
			"stderr",
			filepath.Join(cfg.Paths.LogDir, "proctord.log"),
		},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("proctord shutting down")
}
