// ABOUTME: Configuration loading and parsing for deskflow
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete deskflow configuration
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Bus          BusConfig          `yaml:"bus"`
	Conversation ConversationConfig `yaml:"conversation"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Routing      RoutingConfig      `yaml:"routing"`
	Resolution   ResolutionConfig   `yaml:"resolution"`
	Swarm        SwarmConfig        `yaml:"swarm"`
	LLM          LLMConfig          `yaml:"llm"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BusConfig holds event bus configuration
type BusConfig struct {
	// Backend selects the bus implementation: "inproc" (default) or "kafka"
	Backend string `yaml:"backend"`

	// MaxAttempts is the number of delivery attempts per handler before an
	// event is parked for replay
	MaxAttempts int `yaml:"max_attempts"`

	RetryDelay    time.Duration `yaml:"-"`
	RetryDelayRaw string        `yaml:"retry_delay"`

	// ProcessedSetSize caps the per-bus processed-event set used for
	// idempotent redelivery
	ProcessedSetSize int `yaml:"processed_set_size"`

	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds durable bus backend configuration
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ConversationConfig holds conversation engine configuration
type ConversationConfig struct {
	AutoClassify bool `yaml:"auto_classify"`

	ChatTimeout    time.Duration `yaml:"-"`
	ChatTimeoutRaw string        `yaml:"chat_timeout"`

	ClassifyTimeout    time.Duration `yaml:"-"`
	ClassifyTimeoutRaw string        `yaml:"classify_timeout"`
}

// ClassifierConfig holds classification gatekeeper configuration
type ClassifierConfig struct {
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`
	MaxDeflectionAttempts int     `yaml:"max_deflection_attempts"`
	KnowledgeLimit        int     `yaml:"knowledge_limit"`
}

// RoutingConfig holds routing and queue engine configuration
type RoutingConfig struct {
	MaxQueueSize             int    `yaml:"max_queue_size"`
	Strategy                 string `yaml:"strategy"` // round_robin, least_busy, skill_based
	SkillMatching            bool   `yaml:"skill_matching"`
	EscalationTimeoutMinutes int    `yaml:"escalation_timeout_minutes"`
	AssignmentSweepSchedule  string `yaml:"assignment_sweep_schedule"`
	EscalationSweepSchedule  string `yaml:"escalation_sweep_schedule"`
}

// ResolutionConfig holds resolution orchestrator configuration
type ResolutionConfig struct {
	// DefaultEtaHours maps severity (P0..P3) to default ETA hours
	DefaultEtaHours map[string]int `yaml:"default_eta_hours"`

	UpdateInterval    time.Duration `yaml:"-"`
	UpdateIntervalRaw string        `yaml:"update_interval"`

	SilenceThreshold    time.Duration `yaml:"-"`
	SilenceThresholdRaw string        `yaml:"silence_threshold"`

	AcknowledgeCustomer bool `yaml:"acknowledge_customer"`
	OpenSwarm           bool `yaml:"open_swarm"`
}

// SwarmConfig holds external collaboration channel configuration
type SwarmConfig struct {
	// Backend selects the swarm implementation: "simulated" (default) or "slack"
	Backend  string `yaml:"backend"`
	BotToken string `yaml:"bot_token"`
	// NotifyChannel receives silence-breach warnings
	NotifyChannel string `yaml:"notify_channel"`
}

// LLMConfig holds text-completion collaborator configuration
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional fields.
func (c *Config) applyDefaults() {
	if c.Bus.Backend == "" {
		c.Bus.Backend = "inproc"
	}
	if c.Bus.MaxAttempts == 0 {
		c.Bus.MaxAttempts = 3
	}
	if c.Bus.RetryDelay == 0 {
		c.Bus.RetryDelay = 100 * time.Millisecond
	}
	if c.Bus.ProcessedSetSize == 0 {
		c.Bus.ProcessedSetSize = 10000
	}
	if c.Conversation.ChatTimeout == 0 {
		c.Conversation.ChatTimeout = 10 * time.Minute
	}
	if c.Conversation.ClassifyTimeout == 0 {
		c.Conversation.ClassifyTimeout = 10 * time.Second
	}
	if c.Classifier.ConfidenceThreshold == 0 {
		c.Classifier.ConfidenceThreshold = 0.6
	}
	if c.Classifier.MaxDeflectionAttempts == 0 {
		c.Classifier.MaxDeflectionAttempts = 2
	}
	if c.Classifier.KnowledgeLimit == 0 {
		c.Classifier.KnowledgeLimit = 3
	}
	if c.Routing.MaxQueueSize == 0 {
		c.Routing.MaxQueueSize = 500
	}
	if c.Routing.Strategy == "" {
		c.Routing.Strategy = "skill_based"
	}
	if c.Routing.EscalationTimeoutMinutes == 0 {
		c.Routing.EscalationTimeoutMinutes = 15
	}
	if c.Routing.AssignmentSweepSchedule == "" {
		c.Routing.AssignmentSweepSchedule = "@every 5s"
	}
	if c.Routing.EscalationSweepSchedule == "" {
		c.Routing.EscalationSweepSchedule = "@every 1m"
	}
	if c.Resolution.DefaultEtaHours == nil {
		c.Resolution.DefaultEtaHours = map[string]int{
			"P0": 4, "P1": 24, "P2": 72, "P3": 168,
		}
	}
	if c.Resolution.UpdateInterval == 0 {
		c.Resolution.UpdateInterval = 4 * time.Hour
	}
	if c.Resolution.SilenceThreshold == 0 {
		c.Resolution.SilenceThreshold = 8 * time.Hour
	}
	if c.Swarm.Backend == "" {
		c.Swarm.Backend = "simulated"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "claude-sonnet-4-5-20250929"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Bus.Backend {
	case "inproc":
	case "kafka":
		if len(c.Bus.Kafka.Brokers) == 0 {
			return fmt.Errorf("bus.kafka.brokers is required when bus.backend is kafka")
		}
		if c.Bus.Kafka.Topic == "" {
			return fmt.Errorf("bus.kafka.topic is required when bus.backend is kafka")
		}
	default:
		return fmt.Errorf("bus.backend must be inproc or kafka, got %q", c.Bus.Backend)
	}

	switch c.Routing.Strategy {
	case "round_robin", "least_busy", "skill_based":
	default:
		return fmt.Errorf("routing.strategy must be round_robin, least_busy or skill_based, got %q", c.Routing.Strategy)
	}

	switch c.Swarm.Backend {
	case "simulated":
	case "slack":
		if c.Swarm.BotToken == "" {
			return fmt.Errorf("swarm.bot_token is required when swarm.backend is slack")
		}
	default:
		return fmt.Errorf("swarm.backend must be simulated or slack, got %q", c.Swarm.Backend)
	}

	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when llm is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Bus.RetryDelayRaw, &cfg.Bus.RetryDelay, "bus.retry_delay"},
		{cfg.Conversation.ChatTimeoutRaw, &cfg.Conversation.ChatTimeout, "conversation.chat_timeout"},
		{cfg.Conversation.ClassifyTimeoutRaw, &cfg.Conversation.ClassifyTimeout, "conversation.classify_timeout"},
		{cfg.Resolution.UpdateIntervalRaw, &cfg.Resolution.UpdateInterval, "resolution.update_interval"},
		{cfg.Resolution.SilenceThresholdRaw, &cfg.Resolution.SilenceThreshold, "resolution.silence_threshold"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
