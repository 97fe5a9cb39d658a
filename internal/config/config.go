package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/axonops/cqlmapper/internal/logger"
)

// Config holds the connection and schema settings of the cqlmapper tool
type Config struct {
	Host              string     `json:"host"`
	Port              int        `json:"port"`
	Keyspace          string     `json:"keyspace"`
	Username          string     `json:"username"`
	Password          string     `json:"password"`
	Consistency       string     `json:"consistency,omitempty"`       // e.g. "LOCAL_QUORUM"
	ConnectTimeout    int        `json:"connectTimeout,omitempty"`    // seconds
	RequestTimeout    int        `json:"requestTimeout,omitempty"`    // seconds
	ProtocolVersion   int        `json:"protocolVersion,omitempty"`   // 0 negotiates 5, 4, then 3
	Debug             bool       `json:"debug,omitempty"`
	SchemaDir         string     `json:"schemaDir,omitempty"`         // where generated .cql files are written
	ReplicationFactor int        `json:"replicationFactor,omitempty"` // SimpleStrategy factor for created keyspaces
	SSL               *SSLConfig `json:"ssl,omitempty"`
}

// SSLConfig holds SSL/TLS configuration options
type SSLConfig struct {
	Enabled            bool   `json:"enabled"`
	CertPath           string `json:"certPath,omitempty"`
	KeyPath            string `json:"keyPath,omitempty"`
	CAPath             string `json:"caPath,omitempty"`
	HostVerification   bool   `json:"hostVerification,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty"`
	ServerName         string `json:"serverName,omitempty"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		Host:              "localhost",
		Port:              9042,
		Consistency:       "LOCAL_ONE",
		ConnectTimeout:    10,
		RequestTimeout:    10,
		SchemaDir:         "schemas",
		ReplicationFactor: 1,
	}
}

// ConnectTimeoutDuration returns the connect timeout, defaulting to 10s
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return seconds(c.ConnectTimeout)
}

// RequestTimeoutDuration returns the request timeout, defaulting to 10s
func (c *Config) RequestTimeoutDuration() time.Duration {
	return seconds(c.RequestTimeout)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// LoadConfig builds the configuration in layers: defaults, cqlshrc, a JSON file,
// then environment variables. A custom path replaces the default JSON locations
// and must exist.
func LoadConfig(customConfigPath ...string) (*Config, error) {
	config := Defaults()
	home := os.Getenv("HOME")

	for _, path := range []string{
		filepath.Join(home, ".cassandra", "cqlshrc"),
		filepath.Join(home, ".cqlshrc"),
	} {
		if err := loadCQLSHRC(path, config); err == nil {
			logger.DebugfToFile("Config", "Loaded cqlshrc from %s", path)
			break
		}
	}

	custom := len(customConfigPath) > 0 && customConfigPath[0] != ""
	configPaths := []string{
		"cqlmapper.json",
		filepath.Join(home, ".cqlmapper.json"),
		filepath.Join(home, ".config", "cqlmapper", "config.json"),
	}
	if custom {
		configPaths = customConfigPath[:1]
	}

	found := false
	for _, path := range configPaths {
		data, err := os.ReadFile(path) // #nosec G304 - Config file path is validated
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
		logger.DebugfToFile("Config", "Loaded JSON config from %s", path)
		found = true
		break
	}
	if custom && !found {
		return nil, fmt.Errorf("config file not found: %s", customConfigPath[0])
	}

	OverrideWithEnvVars(config)

	logger.DebugfToFile("Config", "Final config: host=%s, port=%d, keyspace=%s, username=%s, hasPassword=%v",
		config.Host, config.Port, config.Keyspace, config.Username, config.Password != "")
	return config, nil
}

// OverrideWithEnvVars applies CASSANDRA_* and then CQLMAPPER_* variables, so the
// tool-specific prefix wins
func OverrideWithEnvVars(config *Config) {
	for _, prefix := range []string{"CASSANDRA_", "CQLMAPPER_"} {
		setString(prefix+"HOST", &config.Host)
		setInt(prefix+"PORT", &config.Port)
		setString(prefix+"KEYSPACE", &config.Keyspace)
		setString(prefix+"USERNAME", &config.Username)
		setString(prefix+"PASSWORD", &config.Password)
		setString(prefix+"CONSISTENCY", &config.Consistency)
	}

	setInt("CQLMAPPER_CONNECT_TIMEOUT", &config.ConnectTimeout)
	setInt("CQLMAPPER_REQUEST_TIMEOUT", &config.RequestTimeout)
	setInt("CQLMAPPER_PROTOCOL_VERSION", &config.ProtocolVersion)
	setString("CQLMAPPER_SCHEMA_DIR", &config.SchemaDir)
	setInt("CQLMAPPER_REPLICATION_FACTOR", &config.ReplicationFactor)

	if debug := os.Getenv("CQLMAPPER_DEBUG"); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil {
			config.Debug = b
		}
	}
}

func setString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		} else {
			logger.DebugfToFile("Config", "Ignoring %s=%q: not a positive integer", name, v)
		}
	}
}
