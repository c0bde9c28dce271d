package config

import (
	"math"
	"os"
	"strconv"
	"time"

	"merlt/domain/review"
	"merlt/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Authority AuthorityConfig
	Consensus ConsensusConfig
	Session   SessionConfig
	Bias      BiasConfig
	Paths     PathConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// AuthorityConfig holds the weight coefficients of the authority formula
// A(t) = alpha*B + beta*T(t-1) + gamma*P(t). The coefficients must sum to 1.
type AuthorityConfig struct {
	Alpha float64
	Beta  float64
	Gamma float64
	// TrackRecordDecay is the exponential smoothing factor applied to the
	// historical accuracy component on each resolved vote.
	TrackRecordDecay float64
	// RecencyWindow is how many recent resolutions feed the short-window
	// performance component.
	RecencyWindow int
}

// ConsensusConfig holds the per-target-type quorum and decision thresholds.
type ConsensusConfig struct {
	Rules review.RuleSet
}

// SessionConfig holds refinement loop settings
type SessionConfig struct {
	MaxRounds          int
	RoundTimeout       time.Duration
	SessionTimeout     time.Duration
	ConfidenceFloor    float64
	MinRoundsForFloor  int
	ConvergenceEpsilon float64
	// HighConsensus and StabilityEntropy gate the STABLE_CONSENSUS stop:
	// agreement at/above the first and entropy below the second.
	HighConsensus    float64
	StabilityEntropy float64
	// DivergenceEntropy is the synthesizer's mode switch: entropy below it
	// yields convergent synthesis, at/above it divergent.
	DivergenceEntropy float64
}

// BiasConfig holds detection thresholds for the bias auditors
type BiasConfig struct {
	// SignificanceLevel is the p-value ceiling for a test to count.
	SignificanceLevel float64
	// EffectThreshold is the minimum effect size before a report is
	// emitted; detection below it is inconclusive, not a finding.
	EffectThreshold float64
	// MinSamples is the smallest population a detector will test.
	MinSamples int
}

// PathConfig holds file system paths
type PathConfig struct {
	RosterFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Authority: AuthorityConfig{
			Alpha:            getEnvFloatOrDefault("AUTHORITY_ALPHA", 0.4),
			Beta:             getEnvFloatOrDefault("AUTHORITY_BETA", 0.4),
			Gamma:            getEnvFloatOrDefault("AUTHORITY_GAMMA", 0.2),
			TrackRecordDecay: getEnvFloatOrDefault("TRACK_RECORD_DECAY", 0.9),
			RecencyWindow:    getEnvIntOrDefault("RECENCY_WINDOW", 10),
		},
		Consensus: ConsensusConfig{
			Rules: review.DefaultRuleSet(),
		},
		Session: SessionConfig{
			MaxRounds:          getEnvIntOrDefault("MAX_ROUNDS", 5),
			RoundTimeout:       getEnvDurationOrDefault("ROUND_TIMEOUT", 45*time.Second),
			SessionTimeout:     getEnvDurationOrDefault("SESSION_TIMEOUT", 4*time.Minute),
			ConfidenceFloor:    getEnvFloatOrDefault("CONFIDENCE_FLOOR", 0.30),
			MinRoundsForFloor:  getEnvIntOrDefault("MIN_ROUNDS_FOR_FLOOR", 2),
			ConvergenceEpsilon: getEnvFloatOrDefault("CONVERGENCE_EPSILON", 0.02),
			HighConsensus:      getEnvFloatOrDefault("HIGH_CONSENSUS_THRESHOLD", 0.85),
			StabilityEntropy:   getEnvFloatOrDefault("STABILITY_ENTROPY_THRESHOLD", 0.30),
			DivergenceEntropy:  getEnvFloatOrDefault("DIVERGENCE_ENTROPY_THRESHOLD", 0.45),
		},
		Bias: BiasConfig{
			SignificanceLevel: getEnvFloatOrDefault("BIAS_SIGNIFICANCE_LEVEL", 0.05),
			EffectThreshold:   getEnvFloatOrDefault("BIAS_EFFECT_THRESHOLD", 0.10),
			MinSamples:        getEnvIntOrDefault("BIAS_MIN_SAMPLES", 12),
		},
		Paths: PathConfig{
			RosterFile: getEnvOrDefault("ROSTER_FILE", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	a := config.Authority
	if math.Abs(a.Alpha+a.Beta+a.Gamma-1.0) > 1e-9 {
		return errors.ConfigInvalid("AUTHORITY_ALPHA + AUTHORITY_BETA + AUTHORITY_GAMMA must sum to 1")
	}
	if a.TrackRecordDecay <= 0 || a.TrackRecordDecay >= 1 {
		return errors.ConfigInvalid("TRACK_RECORD_DECAY must be in (0, 1)")
	}
	if a.RecencyWindow < 1 {
		return errors.ConfigInvalid("RECENCY_WINDOW must be at least 1")
	}
	if config.Session.MaxRounds < 1 {
		return errors.ConfigInvalid("MAX_ROUNDS must be at least 1")
	}
	if config.Session.ConvergenceEpsilon <= 0 {
		return errors.ConfigInvalid("CONVERGENCE_EPSILON must be positive")
	}
	for tt, rules := range config.Consensus.Rules {
		if rules.Thresholds.Approve <= rules.Thresholds.Controversy {
			return errors.ConfigInvalid("approve threshold must exceed controversy threshold for " + string(tt))
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
