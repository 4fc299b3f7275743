package types

import (
	"fmt"
	"time"
)

// BackendKind identifies a formal-verification backend.
// Per prd001-capability R1.1.
type BackendKind string

const (
	BackendLean BackendKind = "lean"
	BackendCoq  BackendKind = "coq"
)

// AdapterConfig holds per-backend process settings.
// Per prd001-capability R2.1-R2.3.
type AdapterConfig struct {
	// Command is the prover executable to launch (resolved via PATH).
	Command string `json:"command" yaml:"command"`

	// Args are the arguments passed to the prover process.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// WorkDir is the working directory for the prover process. Empty means
	// inherit the orchestrator's.
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`

	// EnvDir is a directory of plain-text files loaded as extra environment
	// entries for the prover process (e.g. LEAN_PATH, COQPATH). The filename
	// is the variable name and the trimmed contents are the value.
	EnvDir string `json:"env_dir,omitempty" yaml:"env_dir,omitempty"`

	// BootstrapCommands are sent once after launch, before the adapter
	// accepts work (standard-library imports, prelude loading).
	BootstrapCommands []string `json:"bootstrap_commands,omitempty" yaml:"bootstrap_commands,omitempty"`

	// BootstrapTimeout bounds the launch-and-handshake phase (default 30s).
	BootstrapTimeout time.Duration `json:"bootstrap_timeout" yaml:"bootstrap_timeout"`
}

// TimeoutConfig holds the per-phase time budgets the orchestrator hands to
// adapters. Per prd002-orchestration R6.2.
type TimeoutConfig struct {
	// QuickCheck bounds translation compile checks and health probes (default 10s).
	QuickCheck time.Duration `json:"quick_check" yaml:"quick_check"`

	// FullVerification bounds a single statement validation (default 60s).
	FullVerification time.Duration `json:"full_verification" yaml:"full_verification"`

	// CrossValidation bounds each branch of the cross-validation fan-out (default 90s).
	CrossValidation time.Duration `json:"cross_validation" yaml:"cross_validation"`

	// MaxOverall bounds one whole job, and doubles as the shutdown grace
	// period for in-flight work (default 5m).
	MaxOverall time.Duration `json:"max_overall" yaml:"max_overall"`

	// CallerWait bounds how long a caller blocks on a queued job before
	// receiving a timeout failure (default 2m). The job itself still runs to
	// completion; its late result is discarded from the caller's view.
	CallerWait time.Duration `json:"caller_wait" yaml:"caller_wait"`
}

// PerformanceConfig holds throughput and resource knobs.
// Per prd002-orchestration R6.3.
type PerformanceConfig struct {
	// CacheEnabled turns the adapter-side translation and health caches on.
	CacheEnabled bool `json:"cache_enabled" yaml:"cache_enabled"`

	// CacheTTL is the lifetime of cached entries (default 10m).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// ParallelValidation runs cross-validation branches concurrently. When
	// false the fan-out degrades to a sequential sweep with the same
	// aggregation.
	ParallelValidation bool `json:"parallel_validation" yaml:"parallel_validation"`

	// MaxConcurrentJobs bounds how many jobs the background scheduler runs
	// at once (default 3).
	MaxConcurrentJobs int `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`

	// QueueCapacity bounds each priority class of the job queue (default 64).
	// A full queue rejects submissions with a backpressure error.
	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`

	// TickInterval is the background scheduler's dequeue cadence (default 100ms).
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`

	// MemoryLimitMB is the advisory per-prover memory ceiling; exceeding it
	// flags the health report (default 2048).
	MemoryLimitMB int `json:"memory_limit_mb" yaml:"memory_limit_mb"`
}

// ThresholdConfig holds the decision thresholds for validation verdicts.
// Per prd002-orchestration R6.4.
type ThresholdConfig struct {
	// MinConfidence is the floor below which a verdict is reported as
	// low-confidence (default 0.5).
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	// CrossValidationMandatory forces the fan-out on every job, not only on
	// primary failure.
	CrossValidationMandatory bool `json:"cross_validation_mandatory" yaml:"cross_validation_mandatory"`

	// MaxErrors is the diagnostic count at which a statement check is cut
	// short (default 10).
	MaxErrors int `json:"max_errors" yaml:"max_errors"`

	// ConsistencyThreshold is the minimum backend confidence for a
	// consistency verdict to be trusted (default 0.6).
	ConsistencyThreshold float64 `json:"consistency_threshold" yaml:"consistency_threshold"`
}

// AuditConfig holds result-history settings. Per prd004-audit-history R1.1.
type AuditConfig struct {
	// Enabled turns the SQLite audit store on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file (default "proofbridge.db").
	Path string `json:"path" yaml:"path"`
}

// ServeConfig holds HTTP service settings. Per prd005-service R1.1, R3.2.
type ServeConfig struct {
	// Addr is the listen address (default ":8389").
	Addr string `json:"addr" yaml:"addr"`

	// RequestsPerSecond and Burst shape the validation-endpoint rate limit
	// (defaults 5.0 and 10).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// VerificationConfig groups every setting the verification layer consumes.
type VerificationConfig struct {
	// PrimaryBackend is attempted first at startup and serves all primary
	// validations. If it cannot be brought up, the first healthy fallback is
	// promoted to acting primary.
	PrimaryBackend BackendKind `json:"primary_backend" yaml:"primary_backend"`

	// FallbackBackends are attempted in order after the primary; individual
	// failures are tolerated.
	FallbackBackends []BackendKind `json:"fallback_backends,omitempty" yaml:"fallback_backends,omitempty"`

	// Adapters overrides per-backend process settings.
	Adapters map[BackendKind]AdapterConfig `json:"adapters,omitempty" yaml:"adapters,omitempty"`

	Timeouts    TimeoutConfig     `json:"timeouts" yaml:"timeouts"`
	Performance PerformanceConfig `json:"performance" yaml:"performance"`
	Thresholds  ThresholdConfig   `json:"thresholds" yaml:"thresholds"`
	Audit       AuditConfig       `json:"audit" yaml:"audit"`
	Serve       ServeConfig       `json:"serve" yaml:"serve"`
}

// DefaultVerificationConfig returns the configuration used when no config
// file overrides are present: Lean primary with Coq fallback.
func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{
		PrimaryBackend:   BackendLean,
		FallbackBackends: []BackendKind{BackendCoq},
		Adapters: map[BackendKind]AdapterConfig{
			BackendLean: {
				Command:          "lean-repl",
				BootstrapTimeout: 30 * time.Second,
			},
			BackendCoq: {
				Command:          "coqtop",
				Args:             []string{"-quiet"},
				BootstrapTimeout: 30 * time.Second,
			},
		},
		Timeouts: TimeoutConfig{
			QuickCheck:       10 * time.Second,
			FullVerification: 60 * time.Second,
			CrossValidation:  90 * time.Second,
			MaxOverall:       5 * time.Minute,
			CallerWait:       2 * time.Minute,
		},
		Performance: PerformanceConfig{
			CacheEnabled:       true,
			CacheTTL:           10 * time.Minute,
			ParallelValidation: true,
			MaxConcurrentJobs:  3,
			QueueCapacity:      64,
			TickInterval:       100 * time.Millisecond,
			MemoryLimitMB:      2048,
		},
		Thresholds: ThresholdConfig{
			MinConfidence:        0.5,
			MaxErrors:            10,
			ConsistencyThreshold: 0.6,
		},
		Audit: AuditConfig{
			Path: "proofbridge.db",
		},
		Serve: ServeConfig{
			Addr:              ":8389",
			RequestsPerSecond: 5.0,
			Burst:             10,
		},
	}
}

// AdapterFor returns the adapter settings for kind, falling back to the
// built-in defaults when the config carries no override.
func (c *VerificationConfig) AdapterFor(kind BackendKind) AdapterConfig {
	if ac, ok := c.Adapters[kind]; ok {
		if ac.BootstrapTimeout <= 0 {
			ac.BootstrapTimeout = 30 * time.Second
		}
		return ac
	}
	def := DefaultVerificationConfig()
	if ac, ok := def.Adapters[kind]; ok {
		return ac
	}
	return AdapterConfig{Command: string(kind), BootstrapTimeout: 30 * time.Second}
}

// Validate checks the configuration for values the orchestrator cannot run with.
func (c *VerificationConfig) Validate() error {
	if c.PrimaryBackend == "" {
		return fmt.Errorf("primary_backend is required")
	}
	if c.Performance.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max_concurrent_jobs must be at least 1, got %d", c.Performance.MaxConcurrentJobs)
	}
	if c.Performance.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", c.Performance.QueueCapacity)
	}
	if c.Performance.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.Performance.TickInterval)
	}
	if c.Thresholds.MinConfidence < 0 || c.Thresholds.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0,1], got %g", c.Thresholds.MinConfidence)
	}
	for _, fb := range c.FallbackBackends {
		if fb == c.PrimaryBackend {
			return fmt.Errorf("fallback backend %q duplicates the primary", fb)
		}
	}
	return nil
}
