package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/curate/internal/api"
	"github.com/kalambet/curate/internal/config"
	"github.com/kalambet/curate/internal/exposure"
	"github.com/kalambet/curate/internal/metrics"
	"github.com/kalambet/curate/internal/review"
	"github.com/kalambet/curate/internal/storage"
	"github.com/kalambet/curate/internal/taxonomy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the curate HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running curate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show curate server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the review tools over MCP stdio for mcp.reviewer_id",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "curate.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Log.Level)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// reviewStack is the storage, catalog and engine shared by serve and mcp.
type reviewStack struct {
	store  *storage.Store
	tags   *taxonomy.Catalog
	engine *review.Engine
}

func openReviewStack(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*reviewStack, error) {
	week, err := review.NewWeekPolicy(cfg.Review.Timezone, cfg.Review.WeekStart)
	if err != nil {
		return nil, fmt.Errorf("week policy: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	tags := taxonomy.NewCatalogWithTTL(store, cfg.Review.TagCacheTTL)
	engine := review.New(store, tags,
		review.WithWeekPolicy(week),
		review.WithWrapScan(cfg.Review.WrapScan),
		review.WithLogger(logger),
		review.WithMetrics(m),
	)
	return &reviewStack{store: store, tags: tags, engine: engine}, nil
}

func (s *reviewStack) Close() {
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "curate version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = config.EnsureSecret("auth.jwt_secret"); err != nil {
			return fmt.Errorf("initializing token secret: %w", err)
		}
	}
	adminToken := cfg.Auth.AdminToken
	if adminToken == "" {
		if adminToken, err = config.EnsureSecret("auth.admin_token"); err != nil {
			return fmt.Errorf("initializing admin token: %w", err)
		}
	}
	slog.Info("signing secret and admin token available")

	// Refuse to start twice against the same data directory.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get("http://" + cfg.Server.Addr() + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("curate is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("curate is already running on %s", cfg.Server.Addr())
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stack, err := openReviewStack(cfg, logger, m)
	if err != nil {
		return err
	}
	defer stack.Close()

	pruner, err := exposure.NewPruner(stack.store, cfg.Exposure.PruneSchedule, cfg.Exposure.Retention,
		exposure.WithLogger(logger), exposure.WithMetrics(m))
	if err != nil {
		return err
	}

	handler := api.NewAppHandler(api.AppDeps{
		Engine:     stack.engine,
		Store:      stack.store,
		Tags:       stack.tags,
		JWTSecret:  []byte(jwtSecret),
		Issuer:     cfg.Auth.Issuer,
		TokenTTL:   cfg.Auth.TokenTTL,
		AdminToken: adminToken,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "curate listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return pruner.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.MCP.ReviewerID == "" {
		return fmt.Errorf("mcp.reviewer_id is not set; run `curate config set mcp.reviewer_id <id>`")
	}
	// stdout carries the protocol; logs go to stderr only.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	stack, err := openReviewStack(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Engine:     stack.engine,
		Tags:       stack.tags,
		ReviewerID: cfg.MCP.ReviewerID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("MCP server started (stdio transport)", "reviewer", cfg.MCP.ReviewerID)
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("curate is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop curate (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to curate (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + cfg.Server.Addr() + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			SchemaVersion int `json:"schema_version"`
		}
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", cfg.Server.Addr())
			if health.SchemaVersion > 0 {
				printStatus("Schema version", "%d", health.SchemaVersion)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Week starts", "%s (%s)", cfg.Review.WeekStart, cfg.Review.Timezone)
	printStatus("Exposure retention", "%s, pruned %s", cfg.Exposure.Retention, cfg.Exposure.PruneSchedule)
	if cfg.MCP.ReviewerID != "" {
		printStatus("MCP reviewer", "%s", cfg.MCP.ReviewerID)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
