package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Realize             time.Duration // Bound on one node realization call
	CertificateIssuance time.Duration // Bound on obtaining and uploading a certificate
	CertificatePoll     time.Duration // Interval between challenge record lookups
	Delete              time.Duration // Bound on one node deletion call
	ClientReady         time.Duration // On-instance wait for the execution client RPC
	ClientReadyPoll     time.Duration // On-instance interval between RPC checks
	RetryMaxAttempts    int           // Maximum number of retry attempts for provider calls
	RetryInitialDelay   time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - NODEFORGE_TIMEOUT_REALIZE (default: 10m)
//   - NODEFORGE_TIMEOUT_CERTIFICATE (default: 30m)
//   - NODEFORGE_CERTIFICATE_POLL (default: 10s)
//   - NODEFORGE_TIMEOUT_DELETE (default: 5m)
//   - NODEFORGE_TIMEOUT_CLIENT_READY (default: 5m)
//   - NODEFORGE_CLIENT_READY_POLL (default: 5s)
//   - NODEFORGE_RETRY_MAX_ATTEMPTS (default: 5)
//   - NODEFORGE_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Realize:             parseDuration("NODEFORGE_TIMEOUT_REALIZE", 10*time.Minute),
		CertificateIssuance: parseDuration("NODEFORGE_TIMEOUT_CERTIFICATE", 30*time.Minute),
		CertificatePoll:     parseDuration("NODEFORGE_CERTIFICATE_POLL", 10*time.Second),
		Delete:              parseDuration("NODEFORGE_TIMEOUT_DELETE", 5*time.Minute),
		ClientReady:         parseDuration("NODEFORGE_TIMEOUT_CLIENT_READY", 5*time.Minute),
		ClientReadyPoll:     parseDuration("NODEFORGE_CLIENT_READY_POLL", 5*time.Second),
		RetryMaxAttempts:    parseInt("NODEFORGE_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:   parseDuration("NODEFORGE_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}

	return i
}
