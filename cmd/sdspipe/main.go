// Entry point for the SDS pipeline service: HTTP API, extraction worker,
// and optional MCP stdio transport, all over one SQLite database.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chemfetch/sdspipe/discovery"
	"github.com/chemfetch/sdspipe/fetch"
	"github.com/chemfetch/sdspipe/httpapi"
	"github.com/chemfetch/sdspipe/jobq"
	"github.com/chemfetch/sdspipe/orchestrator"
	"github.com/chemfetch/sdspipe/sdsextract"
	"github.com/chemfetch/sdspipe/store"
)

func main() {
	configPath := flag.String("config", "sdspipe.yaml", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath, store.Options{MkdirAll: true})
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	queue := jobq.New(st.DB, jobq.Options{
		Visibility:   time.Duration(cfg.Queue.VisibilitySec) * time.Second,
		PollInterval: time.Duration(cfg.Queue.PollIntervalSec) * time.Second,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Logger:       logger,
	})
	if err := queue.EnsureTable(ctx); err != nil {
		slog.Error("job queue init", "error", err)
		os.Exit(1)
	}

	var provider discovery.Provider
	var browserProvider *discovery.BrowserProvider
	if cfg.Discovery.Provider == "browser" {
		browserProvider = discovery.NewBrowserProvider(discovery.BrowserConfig{
			RemoteURL: cfg.Discovery.RemoteChromeURL,
			Logger:    logger,
		})
		defer browserProvider.Close()
		provider = browserProvider
	} else {
		provider = discovery.NewHTTPProvider(discovery.HTTPProviderOptions{})
	}
	disc := discovery.New(discovery.Config{
		Provider:          provider,
		SearchesPerMinute: cfg.Discovery.SearchesPerMinute,
		MinScore:          cfg.Discovery.MinScore,
		Logger:            logger,
	})

	var ocr *sdsextract.OCRClient
	if cfg.OCRURL != "" {
		ocr = sdsextract.NewOCRClient(sdsextract.OCROptions{BaseURL: cfg.OCRURL})
	}
	extractor := sdsextract.New(sdsextract.Config{OCR: ocr, Logger: logger})

	fetcher := fetch.New(fetch.Options{Logger: logger})

	orch := orchestrator.New(orchestrator.Config{
		Store:     st,
		Queue:     queue,
		Discovery: disc,
		Fetcher:   fetcher,
		Extractor: extractor,
		Logger:    logger,
	})

	// Worker loop: claims extraction jobs and runs them.
	go queue.Run(ctx, orch.HandleJob)

	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "sdspipe",
			Version: "1.0.0",
		}, nil)
		extractor.RegisterMCP(mcpSrv)
		disc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	svc := &httpapi.Service{
		Store:     st,
		Orch:      orch,
		Discovery: disc,
		Logger:    logger,
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
