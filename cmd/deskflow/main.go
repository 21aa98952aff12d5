// ABOUTME: Entry point for the deskflow orchestration server
// ABOUTME: Wires storage, the event bus, and the engines together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/deskflow/internal/bus"
	"github.com/2389/deskflow/internal/channel"
	"github.com/2389/deskflow/internal/classifier"
	"github.com/2389/deskflow/internal/config"
	"github.com/2389/deskflow/internal/conversation"
	"github.com/2389/deskflow/internal/knowledge"
	"github.com/2389/deskflow/internal/llm"
	"github.com/2389/deskflow/internal/resolution"
	"github.com/2389/deskflow/internal/routing"
	"github.com/2389/deskflow/internal/sla"
	"github.com/2389/deskflow/internal/store"
	"github.com/2389/deskflow/internal/swarm"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _           _     __ _
  __| | ___  ___| | __/ _| | _____      __
 / _' |/ _ \/ __| |/ / |_| |/ _ \ \ /\ / /
| (_| |  __/\__ \   <|  _| | (_) \ V  V /
 \__,_|\___||___/_|\_\_| |_|\___/ \_/\_/
`

// getConfigPath returns the path to the deskflow config file.
// Priority: DESKFLOW_CONFIG env var > XDG_CONFIG_HOME/deskflow/deskflow.yaml > ~/.config/deskflow/deskflow.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DESKFLOW_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "deskflow.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "deskflow", "deskflow.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: deskflow <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the orchestration server")
		fmt.Println("  init    Create a starter config file")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Bus:      %s\n", cfg.Bus.Backend)
	green.Print("    ▶ ")
	fmt.Printf("Swarm:    %s\n", cfg.Swarm.Backend)
	fmt.Println()

	logger.Info("starting deskflow",
		"config", configPath,
		"bus_backend", cfg.Bus.Backend,
		"routing_strategy", cfg.Routing.Strategy,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	local := bus.NewInProcBus(cfg.Bus.MaxAttempts, cfg.Bus.RetryDelay, cfg.Bus.ProcessedSetSize, logger)
	var eventBus bus.Bus = local
	if cfg.Bus.Backend == "kafka" {
		eventBus = bus.NewKafkaBus(cfg.Bus.Kafka.Brokers, cfg.Bus.Kafka.Topic, "deskflow", local, logger)
	}
	defer eventBus.Close()

	channels := channel.NewRegistry(logger)
	for _, kind := range []channel.Kind{channel.KindChat, channel.KindEmail, channel.KindMessaging} {
		channels.Register(channel.NewSimulatedAdapter(kind, logger))
	}

	var completer llm.Completer
	if cfg.LLM.Enabled {
		completer = llm.NewAnthropicCompleter(cfg.LLM.APIKey, cfg.LLM.Model, logger)
	}

	kb := knowledge.NewStaticIndex(knowledge.DefaultArticles())
	gate := classifier.NewGatekeeper(classifier.Config{
		ConfidenceThreshold:   cfg.Classifier.ConfidenceThreshold,
		MaxDeflectionAttempts: cfg.Classifier.MaxDeflectionAttempts,
		KnowledgeLimit:        cfg.Classifier.KnowledgeLimit,
	}, kb, completer, logger)

	var swarmSvc swarm.Service
	if cfg.Swarm.Backend == "slack" {
		swarmSvc = swarm.NewSlackService(cfg.Swarm.BotToken, logger)
	} else {
		swarmSvc = swarm.NewSimulatedService(logger)
	}

	convEngine := conversation.NewEngine(cfg.Conversation, st, eventBus, gate, sla.NewTableCalculator(), channels, nil, logger)
	convEngine.Start()
	defer convEngine.Stop()

	router := routing.NewEngine(cfg.Routing, eventBus, nil, logger)
	if err := router.Start(ctx); err != nil {
		return fmt.Errorf("starting routing engine: %w", err)
	}
	defer router.Stop()

	orchestrator := resolution.NewOrchestrator(cfg.Resolution, st, eventBus, swarmSvc, channels, completer, cfg.Swarm.NotifyChannel, nil, logger)
	defer orchestrator.Stop()

	logger.Info("deskflow ready")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

const starterConfig = `database:
  path: deskflow.db

bus:
  backend: inproc
  max_attempts: 3
  retry_delay: 100ms

conversation:
  auto_classify: true
  chat_timeout: 10m

classifier:
  confidence_threshold: 0.6
  max_deflection_attempts: 2

routing:
  strategy: skill_based
  skill_matching: true
  max_queue_size: 500
  escalation_timeout_minutes: 15

resolution:
  update_interval: 4h
  silence_threshold: 8h
  acknowledge_customer: true
  open_swarm: true

swarm:
  backend: simulated

llm:
  enabled: false
  api_key: ${ANTHROPIC_API_KEY}

logging:
  level: info
  format: text
`

func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	color.Green("Wrote %s", path)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler renders compact colored log lines for terminals. Group
// names become dotted key prefixes; values with spaces are quoted.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// levelTag returns a fixed-width colored tag so messages line up.
func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERROR")
	case l >= slog.LevelWarn:
		return color.YellowString(" WARN")
	case l >= slog.LevelInfo:
		return color.CyanString(" INFO")
	default:
		return color.MagentaString("DEBUG")
	}
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	buf.WriteByte(' ')
	buf.WriteString(levelTag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		appendAttr(&buf, a.Key, a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.prefix+a.Key, a.Value.String())
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := os.Stdout.WriteString(buf.String())
	return err
}

func appendAttr(buf *strings.Builder, key, value string) {
	if strings.ContainsAny(value, " \t") {
		value = strconv.Quote(value)
	}
	buf.WriteString(color.HiBlackString(" " + key + "="))
	buf.WriteString(value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &colorHandler{level: h.level, attrs: merged, prefix: h.prefix}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &colorHandler{level: h.level, attrs: h.attrs, prefix: h.prefix + name + "."}
}
