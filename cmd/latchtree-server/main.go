// Command latchtree-server exposes a single in-memory
// latchtree.Tree[string, string] over HTTP, following the teacher's
// fiber-based server.Server/routes.SetupRoutes split.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nutella-labs/latchtree"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tree, err := latchtree.New[string, string](cfg.Tree.FanOut, stringCompare)
	if err != nil {
		log.Fatal("constructing tree", zap.Error(err))
	}

	srv := &server{tree: tree, subtreeDepth: cfg.Tree.SubtreeDepth, log: log}
	app := fiber.New()
	srv.setupRoutes(app)

	// The core holds no persisted state to flush (no durability — an
	// explicit non-goal), so shutdown only needs to drain in-flight
	// handlers, not checkpoint anything.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", cfg.Listen.Addr))
	if err := app.Listen(cfg.Listen.Addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
