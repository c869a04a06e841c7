// Mintchatd serves the Mint conversational assistant over HTTP.
//
// The daemon hosts chat sessions (scripted flows, intent-matched answers,
// generative fallback), live hand-off queues, and the structured-settlement
// present-value calculator.
//
// Usage:
//
//	# Start with defaults (in-memory transcripts, OpenAI completion)
//	mintchatd
//
//	# Start with a config file
//	mintchatd -config /etc/mint/config.yaml
//
//	# Configure via environment
//	MINT_SERVER_PORT=9090 MINT_STORAGE_DRIVER=sqlite mintchatd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/chat"
	"github.com/smarterpayouts/mint/internal/completion"
	"github.com/smarterpayouts/mint/internal/config"
	"github.com/smarterpayouts/mint/internal/httpapi"
	"github.com/smarterpayouts/mint/internal/logging"
	"github.com/smarterpayouts/mint/internal/notify"
	"github.com/smarterpayouts/mint/internal/npv"
	"github.com/smarterpayouts/mint/internal/queue"
	"github.com/smarterpayouts/mint/internal/transcript"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  mintchatd           Start the chat daemon\n")
			fmt.Fprintf(os.Stderr, "  mintchatd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("mintchatd by SmarterPayouts\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon together and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mintchatd",
		zap.String("version", version),
		zap.String("commit", gitCommit),
	)

	// Transcript store
	var store chat.Store
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		sqlStore, err := transcript.NewSQLite(cfg.Storage.Path, logger)
		if err != nil {
			return fmt.Errorf("opening transcript store: %w", err)
		}
		defer func() {
			if err := sqlStore.Close(); err != nil {
				logger.Warn("failed to close transcript store", zap.Error(err))
			}
		}()
		store = sqlStore
		logger.Info("using sqlite transcript store", zap.String("path", cfg.Storage.Path))
	default:
		store = transcript.NewMemory()
		logger.Info("using in-memory transcript store")
	}

	// Completion service
	completer, err := completion.NewService(cfg.Completion, logger)
	if err != nil {
		return fmt.Errorf("initializing completion service: %w", err)
	}

	// Hand-off notifier
	var notifier chat.Notifier = notify.Nop{}
	if cfg.NATS.Enabled {
		natsNotifier, err := notify.NewNATS(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return fmt.Errorf("connecting hand-off notifier: %w", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	// Present-value engine
	engine := npv.NewEngine(cfg.NPV.Workers, logger,
		npv.WithTimeout(time.Duration(cfg.NPV.TimeoutSec)*time.Second))
	defer engine.Close()

	queueCfg := queue.Config{
		InitialPosition:  cfg.Queue.InitialPosition,
		InitialWait:      time.Duration(cfg.Queue.InitialWaitSec) * time.Second,
		PositionInterval: time.Duration(cfg.Queue.PositionInterval) * time.Second,
		ConnectDelay:     time.Duration(cfg.Queue.ConnectDelaySec) * time.Second,
		Roster:           cfg.Queue.Roster,
	}

	factory := func(sessionID, userName string) (*chat.Orchestrator, error) {
		return chat.NewOrchestrator(chat.Config{
			SessionID:      sessionID,
			UserName:       userName,
			TypingDelay:    time.Duration(cfg.Chat.TypingDelayMS) * time.Millisecond,
			MatchThreshold: cfg.Chat.MatchThreshold,
			Streaming:      cfg.Chat.Streaming,
			Queue:          queueCfg,
		}, chat.Deps{
			Store:     store,
			Completer: completer,
			Notifier:  notifier,
			Logger:    logger,
		})
	}

	sessions := httpapi.NewSessionManager(factory, logger)
	server, err := httpapi.NewServer(httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, sessions, engine, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
