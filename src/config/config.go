// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads the process-wide verifier configuration.
//
// The configuration is read once at start-up and handed to each component's
// constructor; nothing in the module looks it up globally afterwards.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/policy"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/signature"
)

// Environment variables consulted by [Load].
const (
	EnvConfigFile    = "ECHO_VERIFIER_CONFIG_FILE"
	EnvApplicationID = "ECHO_VERIFIER_APPLICATION_ID"
)

// DefaultServiceDomain is the SAN the platform's signing certificate must carry.
const DefaultServiceDomain = "echo-api.amazon.com"

// ErrInvalid is wrapped by every validation failure reported by [Config.Validate].
var ErrInvalid = errors.New("config: invalid configuration")

// configFormat represents supported configuration file formats.
type configFormat int

const (
	// configFormatJSON represents JSON configuration format (.json)
	configFormatJSON configFormat = iota
	// configFormatYAML represents YAML configuration format (.yaml, .yml)
	configFormatYAML
)

// Validation holds the request verification settings.
type Validation struct {
	// ApplicationID is the only application identity requests may address.
	ApplicationID string `json:"applicationId" yaml:"applicationId"`
	// ServiceDomain must appear among the signing certificate's SANs.
	ServiceDomain string `json:"serviceDomain" yaml:"serviceDomain"`
	// CertHost is the only host certificate chains may be downloaded from.
	CertHost string `json:"certHost" yaml:"certHost"`
	// CertPathPrefix is the path certificate chain URLs must start with.
	CertPathPrefix string `json:"certPathPrefix" yaml:"certPathPrefix"`
	// MaxRequestAgeSeconds bounds the age (and future skew) of request timestamps.
	MaxRequestAgeSeconds int `json:"maxRequestAgeSeconds" yaml:"maxRequestAgeSeconds"`
	// SignatureAlgorithm is one of SHA1WithRSA, SHA256WithRSA or ECDSAWithSHA256.
	SignatureAlgorithm string `json:"signatureAlgorithm" yaml:"signatureAlgorithm"`
	// TrustedRootsFile optionally names a PEM bundle replacing the system roots.
	TrustedRootsFile string `json:"trustedRootsFile,omitempty" yaml:"trustedRootsFile,omitempty"`
	// SkipChainVerification disables verification of the signing chain against a root pool.
	SkipChainVerification bool `json:"skipChainVerification,omitempty" yaml:"skipChainVerification,omitempty"`
}

// Cache holds the signing certificate cache settings.
type Cache struct {
	// Directory stores one <fingerprint>.pem file per certificate URL.
	Directory string `json:"directory" yaml:"directory"`
	// FetchTimeoutSeconds bounds a single certificate download.
	FetchTimeoutSeconds int `json:"fetchTimeoutSeconds" yaml:"fetchTimeoutSeconds"`
	// MaxCertificateBytes bounds the size of a downloaded chain.
	MaxCertificateBytes int64 `json:"maxCertificateBytes" yaml:"maxCertificateBytes"`
	// ParsedCacheSize is the number of parsed chains kept in memory (0 disables).
	ParsedCacheSize int `json:"parsedCacheSize" yaml:"parsedCacheSize"`
	// BreakerFailures is the number of consecutive fetch failures that open the breaker.
	BreakerFailures int `json:"breakerFailures" yaml:"breakerFailures"`
	// BreakerCooldownSeconds is how long an open breaker rejects fetches.
	BreakerCooldownSeconds int `json:"breakerCooldownSeconds" yaml:"breakerCooldownSeconds"`
}

// Server holds the HTTP boundary settings.
type Server struct {
	Address     string `json:"address" yaml:"address"`
	WebhookPath string `json:"webhookPath" yaml:"webhookPath"`
	MetricsPath string `json:"metricsPath" yaml:"metricsPath"`
	// ClientIPHeader, when set, names a header written by a trusted reverse proxy
	// whose first entry replaces the connection's remote address.
	ClientIPHeader string `json:"clientIpHeader,omitempty" yaml:"clientIpHeader,omitempty"`
	MaxBodyBytes   int64  `json:"maxBodyBytes" yaml:"maxBodyBytes"`
	TLSCertFile    string `json:"tlsCertFile,omitempty" yaml:"tlsCertFile,omitempty"`
	TLSKeyFile     string `json:"tlsKeyFile,omitempty" yaml:"tlsKeyFile,omitempty"`
}

// Log holds logging destinations.
type Log struct {
	// ErrorLog receives one line per rejected request: a file path, "stderr" or "stdout".
	ErrorLog string `json:"errorLog" yaml:"errorLog"`
}

// Config represents the verifier configuration structure.
//
// The configuration can be loaded from a JSON or YAML file specified by the
// ECHO_VERIFIER_CONFIG_FILE environment variable or the --config flag, with
// defaults applied for any missing values.
// Supported file extensions: .json, .yaml, .yml
type Config struct {
	Validation Validation `json:"validation" yaml:"validation"`
	Cache      Cache      `json:"cache" yaml:"cache"`
	Server     Server     `json:"server" yaml:"server"`
	Log        Log        `json:"log" yaml:"log"`
}

// Default returns a configuration populated with defaults.
// The application id is left empty and must be supplied.
func Default() *Config {
	return &Config{
		Validation: Validation{
			ServiceDomain:        DefaultServiceDomain,
			CertHost:             policy.DefaultHost,
			CertPathPrefix:       policy.DefaultPathPrefix,
			MaxRequestAgeSeconds: 60,
			SignatureAlgorithm:   signature.SHA1WithRSA.String(),
		},
		Cache: Cache{
			Directory:              "cache",
			FetchTimeoutSeconds:    10,
			MaxCertificateBytes:    64 << 10,
			ParsedCacheSize:        32,
			BreakerFailures:        5,
			BreakerCooldownSeconds: 30,
		},
		Server: Server{
			Address:      ":8080",
			WebhookPath:  "/",
			MetricsPath:  "/metrics",
			MaxBodyBytes: 128 << 10,
		},
		Log: Log{
			ErrorLog: "stderr",
		},
	}
}

// detectConfigFormat determines the configuration file format based on file extension.
// The extension match is case-insensitive.
func detectConfigFormat(configPath string) configFormat {
	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		return configFormatYAML
	default:
		return configFormatJSON
	}
}

// unmarshalConfig unmarshals configuration data based on the specified format.
func unmarshalConfig(data []byte, config *Config, format configFormat) error {
	switch format {
	case configFormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

// Load loads the configuration with [Read] and validates it.
//
// Parameters:
//   - configPath: Path to the configuration file (optional, can be empty)
//
// Returns:
//   - A pointer to the loaded and validated Config
//   - An error if the file cannot be read or parsed, or the result is invalid
func Load(configPath string) (*Config, error) {
	config, err := Read(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Read loads the configuration from a JSON or YAML file or applies defaults,
// without validating the result. Maintenance commands that never verify a
// request use it so that an application id is not required.
//
// Configuration Priority:
//  1. Default values are set
//  2. ECHO_VERIFIER_CONFIG_FILE is checked if configPath is empty
//  3. Config file values override defaults
//  4. ECHO_VERIFIER_APPLICATION_ID overrides the configured application id
func Read(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		configPath = os.Getenv(EnvConfigFile)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := unmarshalConfig(data, config, detectConfigFormat(configPath)); err != nil {
			return nil, err
		}
	}

	if id := os.Getenv(EnvApplicationID); id != "" {
		config.Validation.ApplicationID = id
	}

	return config, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Validation.ApplicationID) == "":
		return fmt.Errorf("%w: validation.applicationId is required", ErrInvalid)
	case c.Validation.ServiceDomain == "":
		return fmt.Errorf("%w: validation.serviceDomain is required", ErrInvalid)
	case c.Validation.CertHost == "":
		return fmt.Errorf("%w: validation.certHost is required", ErrInvalid)
	case !strings.HasPrefix(c.Validation.CertPathPrefix, "/"):
		return fmt.Errorf("%w: validation.certPathPrefix must start with /", ErrInvalid)
	case c.Validation.MaxRequestAgeSeconds <= 0:
		return fmt.Errorf("%w: validation.maxRequestAgeSeconds must be positive", ErrInvalid)
	case c.Cache.Directory == "":
		return fmt.Errorf("%w: cache.directory is required", ErrInvalid)
	case c.Cache.FetchTimeoutSeconds <= 0:
		return fmt.Errorf("%w: cache.fetchTimeoutSeconds must be positive", ErrInvalid)
	case c.Cache.MaxCertificateBytes <= 0:
		return fmt.Errorf("%w: cache.maxCertificateBytes must be positive", ErrInvalid)
	case c.Server.MaxBodyBytes <= 0:
		return fmt.Errorf("%w: server.maxBodyBytes must be positive", ErrInvalid)
	case !strings.HasPrefix(c.Server.WebhookPath, "/"):
		return fmt.Errorf("%w: server.webhookPath must start with /", ErrInvalid)
	case (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == ""):
		return fmt.Errorf("%w: server.tlsCertFile and server.tlsKeyFile must be set together", ErrInvalid)
	}

	if _, err := signature.ParseAlgorithm(c.Validation.SignatureAlgorithm); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return nil
}

// Algorithm returns the parsed signature algorithm. Call after [Config.Validate].
func (v Validation) Algorithm() signature.Algorithm {
	alg, _ := signature.ParseAlgorithm(v.SignatureAlgorithm)
	return alg
}

// MaxRequestAge returns MaxRequestAgeSeconds as a duration.
func (v Validation) MaxRequestAge() time.Duration {
	return time.Duration(v.MaxRequestAgeSeconds) * time.Second
}

// FetchTimeout returns FetchTimeoutSeconds as a duration.
func (c Cache) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// BreakerCooldown returns BreakerCooldownSeconds as a duration.
func (c Cache) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}
