// loom-d is the workflow daemon. It owns the in-memory session, speaks
// MCP on stdio, and serves the read-only ops API over HTTP. Process logs
// go to stderr; stdout belongs to the MCP transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/loomlab/loom/pkg/api"
	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/mcp"
	"github.com/loomlab/loom/pkg/metrics"
	"github.com/loomlab/loom/pkg/oplog"
	"github.com/loomlab/loom/pkg/session"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "loom-d: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("path", cfg.CatalogPath), zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("node_types", cat.Len()))

	ring := oplog.NewRing(cfg.OplogMax)
	var sink oplog.Sink
	if cfg.OplogDB != "" {
		s, err := oplog.NewSQLiteSink(cfg.OplogDB)
		if err != nil {
			logger.Fatal("failed to open oplog sink", zap.String("path", cfg.OplogDB), zap.Error(err))
		}
		sink = s
		logger.Info("oplog sink opened", zap.String("path", cfg.OplogDB))
	}
	log := oplog.New(ring, sink, logger)

	manager := session.NewManager(cat, log)
	prometheus.MustRegister(metrics.NewSessionCollector(manager))

	var apiServer *api.Server
	if cfg.HTTPMode != "off" {
		apiServer = api.NewServer(manager, logger, cfg.Addr, cfg.APIToken)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("ops API stopped", zap.Error(err))
			}
		}()
	}

	// MCP serves in the foreground. It returns when the client closes
	// stdin, which is a normal shutdown for a stdio transport.
	mcpDone := make(chan error, 1)
	go func() {
		mcpDone <- mcp.NewServer(manager).Serve()
	}()
	logger.Info("loom-d started",
		zap.String("addr", cfg.Addr),
		zap.String("http", cfg.HTTPMode),
		zap.Int("oplog_max", cfg.OplogMax))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutdown initiated", zap.String("signal", sig.String()))
	case err := <-mcpDone:
		if err != nil {
			logger.Error("mcp transport failed", zap.Error(err))
		} else {
			logger.Info("mcp client disconnected")
		}
	}

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(ctx); err != nil {
			logger.Error("ops API shutdown failed", zap.Error(err))
		}
	}
	if err := log.Close(); err != nil {
		logger.Error("failed to close oplog sink", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newLogger builds the process logger on stderr. MCP owns stdout, so the
// usual stdout/stderr split of zap's presets cannot be used as-is.
func newLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loom-d: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}
