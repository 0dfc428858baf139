// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package config defines the full configuration tree and its layered loader.
// Every tunable the engine exposes lives here; components receive their
// slice of the tree at construction time and never read the environment
// themselves.
package config

import (
	"fmt"
	"time"
)

// ConfigPathEnvVar names the environment variable that points at an explicit
// config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"/config/prefero.yaml",
	"/config/prefero.yml",
	"./prefero.yaml",
	"./prefero.yml",
}

// Config is the root configuration tree.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Engine    EngineConfig    `koanf:"engine"`
	Journal   JournalConfig   `koanf:"journal"`
	Snapshot  SnapshotConfig  `koanf:"snapshot"`
	Decay     DecayConfig     `koanf:"decay"`
	NATS      NATSConfig      `koanf:"nats"`
	Websocket WebsocketConfig `koanf:"websocket"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// Host to bind. Default: 0.0.0.0.
	Host string `koanf:"host"`

	// Port to listen on. Default: 8480.
	Port int `koanf:"port"`

	// ReadTimeout for incoming requests. Default: 15s.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout for responses. Default: 30s.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins. Default: empty (same origin only).
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is requests per minute per client IP for API routes.
	// Default: 300.
	RateLimit int `koanf:"rate_limit"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error. Default: info.
	Level string `koanf:"level"`

	// Format: json or console. Default: json.
	Format string `koanf:"format"`

	// Caller includes file:line in log events. Default: false.
	Caller bool `koanf:"caller"`
}

// StoreConfig holds preference store settings.
type StoreConfig struct {
	// Backend selects the profile store: badger or memory. Default: badger.
	Backend string `koanf:"backend"`

	// Path is the Badger data directory. Default: /data/profiles.
	Path string `koanf:"path"`

	// RetryAttempts bounds optimistic-concurrency retries before the
	// version conflict surfaces to the caller. Default: 3.
	RetryAttempts int `koanf:"retry_attempts"`

	// SyncWrites makes Badger fsync every write. Default: false.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often the Badger value log is garbage collected.
	// Default: 10m.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// DatabaseConfig holds the DuckDB settings for the catalog, interactions,
// and the preference journal.
type DatabaseConfig struct {
	// Path is the database file, or :memory:. Default: /data/prefero.db.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory cap. Default: 1GB.
	MaxMemory string `koanf:"max_memory"`

	// Threads used by DuckDB, 0 means NumCPU. Default: 0.
	Threads int `koanf:"threads"`
}

// EngineConfig groups the engine constant blocks.
type EngineConfig struct {
	Reconcile ReconcileConfig `koanf:"reconcile"`
	Transfer  TransferConfig  `koanf:"transfer"`
	Rank      RankConfig      `koanf:"rank"`
	Session   SessionConfig   `koanf:"session"`
}

// ReconcileConfig holds the reconciler constants.
type ReconcileConfig struct {
	// LearningRate scales strength updates. Default: 0.5.
	LearningRate float64 `koanf:"learning_rate"`

	// ConfidenceGain scales confidence growth on reinforcement.
	// Default: 0.3.
	ConfidenceGain float64 `koanf:"confidence_gain"`

	// ContradictionPenalty is the confidence fraction lost when a polarity
	// flip supersedes an entry. Default: 0.15.
	ContradictionPenalty float64 `koanf:"contradiction_penalty"`

	// HardPromotionStreak is the consecutive strong reinforcements needed
	// before a soft preference hardens into a filter. Default: 3.
	HardPromotionStreak int `koanf:"hard_promotion_streak"`

	// HardPromotionStrength is the signal strength floor a reinforcement
	// must meet to count toward the streak. Default: 0.8.
	HardPromotionStrength float64 `koanf:"hard_promotion_strength"`

	// LongTermThreshold is the confidence at which a session preference is
	// promoted to long_term scope. Default: 0.6.
	LongTermThreshold float64 `koanf:"long_term_threshold"`

	// HalfLife is the inactivity period after which a preference's recency
	// weight halves. Default: 336h (14 days).
	HalfLife time.Duration `koanf:"half_life"`
}

// TransferConfig holds the cross-category transfer constants.
type TransferConfig struct {
	// Enabled toggles cross-category transfer. Default: true.
	Enabled bool `koanf:"enabled"`

	// Discount caps a transferred entry's confidence at
	// source_confidence * Discount. Default: 0.4.
	Discount float64 `koanf:"discount"`
}

// RankConfig holds the ranking engine constants.
type RankConfig struct {
	// ExplorationAmplitude is the bounded noise added to scores as a
	// fraction of the score range. Default: 0.05.
	ExplorationAmplitude float64 `koanf:"exploration_amplitude"`

	// Seed initializes the exploration RNG so runs reproduce exactly.
	// Default: 42.
	Seed int64 `koanf:"seed"`
}

// SessionConfig holds the session controller settings.
type SessionConfig struct {
	// ClarificationBand is the top-2 score distance below which a ranking
	// is treated as indistinguishable. Default: 0.02.
	ClarificationBand float64 `koanf:"clarification_band"`

	// ClarificationMinTurns is the turn count before an indistinguishable
	// top-2 triggers a clarification. Default: 5.
	ClarificationMinTurns int `koanf:"clarification_min_turns"`

	// CandidateBatchSize bounds how many candidates the controller requests
	// from the catalog per turn. Default: 50.
	CandidateBatchSize int `koanf:"candidate_batch_size"`

	// TTL evicts idle sessions. Default: 2h.
	TTL time.Duration `koanf:"ttl"`

	// MaxSessions caps concurrently tracked sessions. Default: 10000.
	MaxSessions int `koanf:"max_sessions"`
}

// JournalConfig holds the preference journal settings.
type JournalConfig struct {
	// Enabled toggles journaling. Default: true.
	Enabled bool `koanf:"enabled"`

	// BufferSize is the async recorder queue length. Default: 1024.
	BufferSize int `koanf:"buffer_size"`

	// Retention is how long journal events are kept. Default: 2160h (90d).
	Retention time.Duration `koanf:"retention"`

	// PruneInterval is how often expired events are deleted. Default: 12h.
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// SnapshotConfig holds the profile snapshot settings.
type SnapshotConfig struct {
	// Enabled toggles periodic snapshots. Default: false.
	Enabled bool `koanf:"enabled"`

	// Dir is where snapshot files are written. Default: /data/snapshots.
	Dir string `koanf:"dir"`

	// Interval between snapshots. Default: 6h.
	Interval time.Duration `koanf:"interval"`

	// Keep is how many snapshot versions are retained. Default: 5.
	Keep int `koanf:"keep"`
}

// DecayConfig holds the confidence decay sweep settings.
type DecayConfig struct {
	// Enabled toggles the background sweep. Default: true.
	Enabled bool `koanf:"enabled"`

	// Interval between sweeps. Default: 1h.
	Interval time.Duration `koanf:"interval"`

	// WritesPerSecond caps profile writes during a sweep so decay never
	// starves live traffic. Default: 25.
	WritesPerSecond float64 `koanf:"writes_per_second"`
}

// NATSConfig holds signal ingest settings. Only honored in binaries built
// with the nats tag.
type NATSConfig struct {
	// Enabled toggles the NATS signal consumer. Default: false.
	Enabled bool `koanf:"enabled"`

	// URL of the NATS server. Ignored when EmbeddedServer is true.
	// Default: nats://127.0.0.1:4222.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process JetStream server. Default: false.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the embedded server's JetStream directory.
	// Default: /data/nats.
	StoreDir string `koanf:"store_dir"`

	// StreamName is the JetStream stream holding signal envelopes.
	// Default: SIGNALS.
	StreamName string `koanf:"stream_name"`

	// Subject is the topic signals are consumed from. Default: signals.turn.
	Subject string `koanf:"subject"`

	// DurableName is the durable consumer name. Default: prefero-engine.
	DurableName string `koanf:"durable_name"`

	// QueueGroup spreads delivery across instances. Default: engines.
	QueueGroup string `koanf:"queue_group"`

	// SubscribersCount is the parallel consumer count. Default: 2.
	SubscribersCount int `koanf:"subscribers_count"`

	// MaxDeliver bounds redelivery of failing messages. Default: 5.
	MaxDeliver int `koanf:"max_deliver"`

	// AckWait is how long JetStream waits for an ack before redelivery.
	// Default: 30s.
	AckWait time.Duration `koanf:"ack_wait"`
}

// WebsocketConfig holds the live turn feed settings. Frame timeouts and
// buffer sizes are fixed in the websocket package; the feed is either on
// or off.
type WebsocketConfig struct {
	// Enabled toggles the /api/v1/ws feed. Default: true.
	Enabled bool `koanf:"enabled"`
}

// defaultConfig returns the built-in defaults, the bottom layer of the
// loader.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:       "badger",
			Path:          "/data/profiles",
			RetryAttempts: 3,
			GCInterval:    10 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/prefero.db",
			MaxMemory: "1GB",
		},
		Engine: EngineConfig{
			Reconcile: ReconcileConfig{
				LearningRate:          0.5,
				ConfidenceGain:        0.3,
				ContradictionPenalty:  0.15,
				HardPromotionStreak:   3,
				HardPromotionStrength: 0.8,
				LongTermThreshold:     0.6,
				HalfLife:              336 * time.Hour,
			},
			Transfer: TransferConfig{
				Enabled:  true,
				Discount: 0.4,
			},
			Rank: RankConfig{
				ExplorationAmplitude: 0.05,
				Seed:                 42,
			},
			Session: SessionConfig{
				ClarificationBand:     0.02,
				ClarificationMinTurns: 5,
				CandidateBatchSize:    50,
				TTL:                   2 * time.Hour,
				MaxSessions:           10000,
			},
		},
		Journal: JournalConfig{
			Enabled:       true,
			BufferSize:    1024,
			Retention:     2160 * time.Hour,
			PruneInterval: 12 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Enabled:  false,
			Dir:      "/data/snapshots",
			Interval: 6 * time.Hour,
			Keep:     5,
		},
		Decay: DecayConfig{
			Enabled:         true,
			Interval:        time.Hour,
			WritesPerSecond: 25,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			StoreDir:         "/data/nats",
			StreamName:       "SIGNALS",
			Subject:          "signals.turn",
			DurableName:      "prefero-engine",
			QueueGroup:       "engines",
			SubscribersCount: 2,
			MaxDeliver:       5,
			AckWait:          30 * time.Second,
		},
		Websocket: WebsocketConfig{
			Enabled: true,
		},
	}
}

// Validate checks the whole tree and reports the first violation.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("server.rate_limit must be positive, got %d", c.Server.RateLimit)
	}
	if c.Store.Backend != "badger" && c.Store.Backend != "memory" {
		return fmt.Errorf("store.backend must be badger or memory, got %q", c.Store.Backend)
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return fmt.Errorf("store.path required for the badger backend")
	}
	if c.Store.RetryAttempts < 1 {
		return fmt.Errorf("store.retry_attempts must be at least 1, got %d", c.Store.RetryAttempts)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path required")
	}
	if err := c.Engine.Reconcile.validate(); err != nil {
		return err
	}
	if c.Engine.Transfer.Discount <= 0 || c.Engine.Transfer.Discount > 1 {
		return fmt.Errorf("engine.transfer.discount must be in (0,1], got %f", c.Engine.Transfer.Discount)
	}
	if c.Engine.Rank.ExplorationAmplitude < 0 || c.Engine.Rank.ExplorationAmplitude > 0.5 {
		return fmt.Errorf("engine.rank.exploration_amplitude must be in [0,0.5], got %f", c.Engine.Rank.ExplorationAmplitude)
	}
	if c.Engine.Session.ClarificationBand < 0 || c.Engine.Session.ClarificationBand > 1 {
		return fmt.Errorf("engine.session.clarification_band must be in [0,1], got %f", c.Engine.Session.ClarificationBand)
	}
	if c.Engine.Session.ClarificationMinTurns < 1 {
		return fmt.Errorf("engine.session.clarification_min_turns must be at least 1, got %d", c.Engine.Session.ClarificationMinTurns)
	}
	if c.Engine.Session.CandidateBatchSize < 1 {
		return fmt.Errorf("engine.session.candidate_batch_size must be positive, got %d", c.Engine.Session.CandidateBatchSize)
	}
	if c.Engine.Session.MaxSessions < 1 {
		return fmt.Errorf("engine.session.max_sessions must be positive, got %d", c.Engine.Session.MaxSessions)
	}
	if c.Journal.Enabled && c.Journal.BufferSize < 1 {
		return fmt.Errorf("journal.buffer_size must be positive, got %d", c.Journal.BufferSize)
	}
	if c.Snapshot.Enabled && c.Snapshot.Keep < 1 {
		return fmt.Errorf("snapshot.keep must be positive, got %d", c.Snapshot.Keep)
	}
	if c.Decay.Enabled && c.Decay.WritesPerSecond <= 0 {
		return fmt.Errorf("decay.writes_per_second must be positive, got %f", c.Decay.WritesPerSecond)
	}
	if c.NATS.Enabled {
		if c.NATS.Subject == "" {
			return fmt.Errorf("nats.subject required when nats is enabled")
		}
		if c.NATS.StreamName == "" {
			return fmt.Errorf("nats.stream_name required when nats is enabled")
		}
		if c.NATS.SubscribersCount < 1 {
			return fmt.Errorf("nats.subscribers_count must be positive, got %d", c.NATS.SubscribersCount)
		}
	}
	return nil
}

// validate checks the reconciler constants.
func (r *ReconcileConfig) validate() error {
	if r.LearningRate <= 0 || r.LearningRate > 1 {
		return fmt.Errorf("engine.reconcile.learning_rate must be in (0,1], got %f", r.LearningRate)
	}
	if r.ConfidenceGain <= 0 || r.ConfidenceGain > 1 {
		return fmt.Errorf("engine.reconcile.confidence_gain must be in (0,1], got %f", r.ConfidenceGain)
	}
	if r.ContradictionPenalty < 0 || r.ContradictionPenalty > 1 {
		return fmt.Errorf("engine.reconcile.contradiction_penalty must be in [0,1], got %f", r.ContradictionPenalty)
	}
	if r.HardPromotionStreak < 1 {
		return fmt.Errorf("engine.reconcile.hard_promotion_streak must be at least 1, got %d", r.HardPromotionStreak)
	}
	if r.HardPromotionStrength <= 0 || r.HardPromotionStrength > 1 {
		return fmt.Errorf("engine.reconcile.hard_promotion_strength must be in (0,1], got %f", r.HardPromotionStrength)
	}
	if r.LongTermThreshold <= 0 || r.LongTermThreshold > 1 {
		return fmt.Errorf("engine.reconcile.long_term_threshold must be in (0,1], got %f", r.LongTermThreshold)
	}
	if r.HalfLife <= 0 {
		return fmt.Errorf("engine.reconcile.half_life must be positive, got %v", r.HalfLife)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return &clone
}
