// Package daemon runs the LegalSmart API server as a long-lived process
// and manages its PID file and service registration.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/legalsmart/internal/api"
	"github.com/allaspectsdev/legalsmart/internal/config"
	"github.com/allaspectsdev/legalsmart/internal/store"
	"github.com/allaspectsdev/legalsmart/internal/tracing"
	"github.com/allaspectsdev/legalsmart/internal/version"
)

const logFilename = "legalsmart.log"

// SetupLogger points the global zerolog logger at dataDir/legalsmart.log,
// and also at the console when running in the foreground. The returned
// closer releases the log file.
func SetupLogger(dataDir, level string, foreground bool) (io.Closer, error) {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	logPath := filepath.Join(dataDir, logFilename)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", logPath, err)
	}

	writers := []io.Writer{logFile}
	if foreground {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "legalsmart").Logger()
	return logFile, nil
}

// Run is the main daemon orchestrator. It opens the store, wires the
// assistant, starts the API server, and blocks until a shutdown signal is
// received.
func Run(cfg *config.Config, foreground bool) error {
	// 1. Logging.
	dataDir := cfg.Server.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logFile, err := SetupLogger(dataDir, cfg.Server.LogLevel, foreground)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("legalsmart starting")

	// 2. Refuse to start twice.
	if IsRunning(dataDir) {
		return fmt.Errorf("legalsmart is already running (PID file exists at %s)", pidPath(dataDir))
	}

	// 3. Tracing.
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(context.Background(), tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Version:     version.Version,
			Exporter:    cfg.Tracing.Exporter,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRate:  cfg.Tracing.SampleRate,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			return fmt.Errorf("initialising tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Error().Err(err).Msg("tracing shutdown error")
			}
		}()
		log.Info().Str("exporter", cfg.Tracing.Exporter).Msg("tracing enabled")
	}

	// 4. Store, API key and assistant.
	svc, err := OpenServices(context.Background(), cfg, nil, log.Logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	// 5. PID file.
	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()
	log.Info().Int("pid", os.Getpid()).Msg("PID file written")

	// 6. Config hot-reload. Only the log level is applied live; the other
	// settings take effect on restart.
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			defer w.Close()
			w.OnChange(func(_, newCfg *config.Config) {
				zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
				log.Info().Str("log_level", newCfg.Server.LogLevel).Msg("configuration reloaded")
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}

	// 7. Request log pruning.
	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	defer pruneCancel()
	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		runPruner(pruneCtx, svc.Store, cfg.Database.RetentionDays)
	}()

	// 8. API server.
	server := api.NewServer(api.Deps{
		Store:     svc.Store,
		Sessions:  svc.Sessions,
		Collector: svc.Collector,
		Breakers:  svc.Breakers,
		Logger:    log.Logger,
	}, api.Options{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		MaxBodySize:  cfg.Server.MaxBodySize,
		Tracing:      cfg.Tracing.Enabled,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	log.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("ai_enabled", svc.Caller != nil).
		Msg("legalsmart is ready")
	if foreground {
		fmt.Printf("\n  LegalSmart is running!\n")
		fmt.Printf("  API: http://%s\n", clientAddr(cfg.Server))
		if svc.Caller == nil {
			fmt.Printf("  AI:  disabled (no API key), answers use the local summary\n")
		}
		fmt.Println()
	}

	// 9. Wait for shutdown signal or fatal error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		return err
	}

	// 10. Graceful shutdown with 30-second timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info().Msg("shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}

	// Wait for the pruner before the deferred store close.
	pruneCancel()
	<-prunerDone

	log.Info().Msg("legalsmart stopped")
	return nil
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := config.Get().Server.DataDir

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("legalsmart does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		// Stale PID file; clean it up.
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("legalsmart is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to legalsmart (PID %d)\n", pid)

	// Wait briefly for the process to exit.
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}
	return nil
}

type requestsResponse struct {
	Stats store.RequestStats `json:"stats"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	AIEnabled bool   `json:"ai_enabled"`
}

// Status checks if the daemon is running and prints a summary of the last
// day of assistant traffic.
func Status() error {
	cfg := config.Get()
	dataDir := cfg.Server.DataDir

	if !IsRunning(dataDir) {
		fmt.Println("legalsmart is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("legalsmart is running (PID %d)\n", pid)

	base := "http://" + clientAddr(cfg.Server)
	client := &http.Client{Timeout: 3 * time.Second}

	var health healthResponse
	if err := getJSON(client, base+"/health", &health); err != nil {
		fmt.Println("  (api unreachable)")
		return nil
	}
	var reqs requestsResponse
	if err := getJSON(client, base+"/api/requests?limit=1", &reqs); err != nil {
		fmt.Println("  (api unreachable)")
		return nil
	}

	s := reqs.Stats
	fmt.Printf("\n  Health:         %s (database %s)\n", health.Status, health.Database)
	fmt.Printf("  AI Enabled:     %t\n", health.AIEnabled)
	fmt.Printf("  Requests (24h): %d\n", s.TotalRequests)
	fmt.Printf("  Live:           %d\n", s.Live)
	fmt.Printf("  Cache Hits:     %d\n", s.CacheHits)
	fmt.Printf("  Fallbacks:      %d\n", s.Fallbacks)
	fmt.Printf("  Throttled:      %d\n", s.Throttled)
	fmt.Printf("  Tokens In:      %d\n", s.TotalTokensIn)
	fmt.Printf("  Cost:           $%.4f\n", s.TotalCostUSD)
	fmt.Printf("  Avg Latency:    %.0f ms\n", s.AvgLiveLatency)
	return nil
}

func getJSON(client *http.Client, url string, v interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// clientAddr is the host:port a local client should dial for s. Wildcard
// bind addresses are replaced by localhost.
func clientAddr(s config.ServerConfig) string {
	host := s.BindAddress
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// runPruner periodically prunes old request log entries from the store.
func runPruner(ctx context.Context, st *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("data pruner: recovered from panic")
					}
				}()
				n, err := st.Prune(retentionDays)
				if err != nil {
					log.Error().Err(err).Msg("data pruning failed")
				} else if n > 0 {
					log.Info().Int64("rows", n).Int("retention_days", retentionDays).Msg("pruned old data")
				}
			}()
		}
	}
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
