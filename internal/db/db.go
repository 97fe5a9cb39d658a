package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/axonops/cqlmapper/internal/config"
	"github.com/axonops/cqlmapper/internal/logger"
	"github.com/axonops/cqlmapper/repository"
)

// Session is a wrapper around the gocql.Session.
type Session struct {
	*gocql.Session
	cluster          *gocql.ClusterConfig
	consistency      gocql.Consistency
	cassandraVersion string
}

// quietLogger keeps gocql's own chatter out of the CLI output
type quietLogger struct{}

func (quietLogger) Error(msg string, fields ...gocql.LogField)   {}
func (quietLogger) Warning(msg string, fields ...gocql.LogField) {}
func (quietLogger) Info(msg string, fields ...gocql.LogField)    {}
func (quietLogger) Debug(msg string, fields ...gocql.LogField)   {}

var consistencyLevels = map[string]gocql.Consistency{
	"ANY":          gocql.Any,
	"ONE":          gocql.One,
	"TWO":          gocql.Two,
	"THREE":        gocql.Three,
	"QUORUM":       gocql.Quorum,
	"ALL":          gocql.All,
	"LOCAL_QUORUM": gocql.LocalQuorum,
	"EACH_QUORUM":  gocql.EachQuorum,
	"LOCAL_ONE":    gocql.LocalOne,
}

// ParseConsistency converts a level name such as "local_quorum" to a gocql consistency
func ParseConsistency(level string) (gocql.Consistency, error) {
	c, ok := consistencyLevels[strings.ToUpper(strings.TrimSpace(level))]
	if !ok {
		return gocql.LocalOne, fmt.Errorf("invalid consistency level: %s", level)
	}
	return c, nil
}

// ConsistencyName returns the canonical name of a consistency level
func ConsistencyName(c gocql.Consistency) string {
	for name, level := range consistencyLevels {
		if level == c {
			return name
		}
	}
	return "UNKNOWN"
}

// NewCluster builds the cluster configuration for cfg without connecting
func NewCluster(cfg *config.Config) (*gocql.ClusterConfig, error) {
	cluster := gocql.NewCluster(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	cluster.Logger = quietLogger{}
	cluster.Timeout = cfg.RequestTimeoutDuration()
	cluster.ConnectTimeout = cfg.ConnectTimeoutDuration()
	cluster.DisableInitialHostLookup = true
	cluster.Keyspace = cfg.Keyspace

	consistency := gocql.LocalOne
	if cfg.Consistency != "" {
		c, err := ParseConsistency(cfg.Consistency)
		if err != nil {
			return nil, err
		}
		consistency = c
	}
	cluster.Consistency = consistency

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	if cfg.SSL != nil && cfg.SSL.Enabled {
		tlsConfig, err := createTLSConfig(cfg.SSL, cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
		cluster.SslOpts = &gocql.SslOptions{Config: tlsConfig}
	}
	return cluster, nil
}

// NewSession connects to the cluster described by cfg. Without an explicit
// protocol version it tries v5, v4 and v3 in turn.
func NewSession(cfg *config.Config) (*Session, error) {
	cluster, err := NewCluster(cfg)
	if err != nil {
		return nil, err
	}

	// Protocol v5: Cassandra 4.0+, v4: 3.0+, v3: 2.1+
	protocolVersions := []int{5, 4, 3}
	if cfg.ProtocolVersion > 0 {
		protocolVersions = []int{cfg.ProtocolVersion}
	}

	var session *gocql.Session
	for _, protoVer := range protocolVersions {
		cluster.ProtoVersion = protoVer
		session, err = cluster.CreateSession()
		if err == nil {
			logger.DebugfToFile("Session", "Connected to %s:%d with protocol version %d", cfg.Host, cfg.Port, protoVer)
			break
		}
		logger.DebugfToFile("Session", "Failed to connect with protocol version %d: %v", protoVer, err)
	}
	if session == nil {
		return nil, fmt.Errorf("failed to connect to Cassandra with any supported protocol version: %w", err)
	}

	var releaseVersion string
	iter := session.Query("SELECT release_version FROM system.local").Iter()
	iter.Scan(&releaseVersion)
	_ = iter.Close()

	return &Session{
		Session:          session,
		cluster:          cluster,
		consistency:      cluster.Consistency,
		cassandraVersion: releaseVersion,
	}, nil
}

// Consistency returns the session's consistency level name
func (s *Session) Consistency() string {
	return ConsistencyName(s.consistency)
}

// CassandraVersion returns the Cassandra version
func (s *Session) CassandraVersion() string {
	if s.cassandraVersion == "" {
		return "unknown"
	}
	return s.cassandraVersion
}

// Keyspace returns the session keyspace
func (s *Session) Keyspace() string {
	if s.cluster != nil {
		return s.cluster.Keyspace
	}
	return ""
}

// Executor returns a repository executor bound to this session
func (s *Session) Executor() *repository.SessionExecutor {
	return repository.NewSessionExecutor(s.Session, s.consistency)
}

// ExecuteStatements runs DDL statements in order, stopping at the first failure
func (s *Session) ExecuteStatements(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		logger.DebugfToFile("Session", "Executing statement %d/%d: %s", i+1, len(stmts), stmt)
		if err := s.Session.Query(stmt).Consistency(s.consistency).ExecContext(ctx); err != nil {
			return fmt.Errorf("statement %d failed: %w", i+1, err)
		}
	}
	return nil
}

// createTLSConfig creates a TLS configuration based on the SSL settings
func createTLSConfig(sslConfig *config.SSLConfig, hostname string) (*tls.Config, error) {
	serverName := sslConfig.ServerName
	if serverName == "" {
		serverName = hostname
		if colonIdx := strings.LastIndex(hostname, ":"); colonIdx > 0 {
			serverName = hostname[:colonIdx]
		}
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: sslConfig.InsecureSkipVerify, // #nosec G402 - Configurable TLS verification
	}
	if sslConfig.HostVerification && serverName != "" {
		tlsConfig.ServerName = serverName
	}

	if sslConfig.CertPath != "" && sslConfig.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(sslConfig.CertPath, sslConfig.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if sslConfig.CAPath != "" {
		caCert, err := os.ReadFile(sslConfig.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
