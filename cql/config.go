package cql

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/nativecql/coredriver/frame"
	"github.com/nativecql/coredriver/transport"
	"gopkg.in/yaml.v2"
)

// SessionConfig is everything NewSession needs to bring a driver session
// up: the seed hosts, protocol negotiation, pooling shape, and the
// default execution parameters new statements inherit.
type SessionConfig struct {
	Hosts    []string
	Keyspace string

	ProtocolVersion frame.ProtocolVersion
	Compression     frame.Compression

	Username string
	Password string

	LocalDC string

	ConnectTimeout     time.Duration
	HeartbeatInterval  time.Duration
	DefunctReadTimeout time.Duration

	CoreConnectionsPerHost   int
	MaxConnectionsPerHost    int
	MaxRequestsPerConnection int
	GrowthThresholdRequests  int

	DefaultConsistency       frame.Consistency
	DefaultSerialConsistency frame.Consistency
	DefaultPageSize          int32

	PreparedStatementCacheSize int
	ReprepareConcurrency       int

	TLSConfig *tls.Config

	Logger transport.Logger
}

const (
	defaultPreparedStatementCacheSize = 1000
	defaultReprepareConcurrency       = 64
)

// DefaultSessionConfig returns a SessionConfig with the same defaults a
// fresh driver connection would negotiate against a modern Scylla
// cluster: protocol v4, no compression, LOCAL_ONE/SERIAL consistency,
// one core connection per host growing to eight under load.
func DefaultSessionConfig(keyspace string, hosts ...string) SessionConfig {
	return SessionConfig{
		Hosts:                      hosts,
		Keyspace:                   keyspace,
		ProtocolVersion:            frame.ProtocolV4,
		Compression:                frame.NoCompression,
		ConnectTimeout:             5 * time.Second,
		HeartbeatInterval:          30 * time.Second,
		DefunctReadTimeout:         10 * time.Second,
		CoreConnectionsPerHost:     1,
		MaxConnectionsPerHost:      8,
		MaxRequestsPerConnection:   1024,
		GrowthThresholdRequests:    768,
		DefaultConsistency:         frame.LOCALONE,
		DefaultSerialConsistency:   frame.SERIAL,
		DefaultPageSize:            5000,
		PreparedStatementCacheSize: defaultPreparedStatementCacheSize,
		ReprepareConcurrency:       defaultReprepareConcurrency,
		Logger:                     transport.NopLogger{},
	}
}

// Clone returns a deep-enough copy of c that mutating the result never
// affects c's own slices.
func (c SessionConfig) Clone() SessionConfig {
	clone := c
	clone.Hosts = append([]string(nil), c.Hosts...)
	return clone
}

func (c SessionConfig) validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("cql: SessionConfig.Hosts must not be empty")
	}
	if c.CoreConnectionsPerHost <= 0 || c.MaxConnectionsPerHost < c.CoreConnectionsPerHost {
		return fmt.Errorf("cql: SessionConfig connection pool sizing is invalid")
	}
	if c.ReprepareConcurrency <= 0 {
		return fmt.Errorf("cql: SessionConfig.ReprepareConcurrency must be positive")
	}
	if c.PreparedStatementCacheSize <= 0 {
		return fmt.Errorf("cql: SessionConfig.PreparedStatementCacheSize must be positive")
	}
	return nil
}

// yamlSessionConfig is the on-disk shape LoadSessionConfigYAML accepts. It
// only exposes the fields deployments commonly externalize (hosts, auth,
// pool sizing, TLS); anything else is left at SessionConfig's defaults and
// must be set programmatically.
type yamlSessionConfig struct {
	Hosts    []string `yaml:"hosts"`
	Keyspace string   `yaml:"keyspace"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	LocalDC  string   `yaml:"local_dc"`

	ConnectTimeout    string `yaml:"connect_timeout"`
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	Consistency       string `yaml:"consistency"`
	Compression       string `yaml:"compression"`

	CoreConnectionsPerHost     int `yaml:"core_connections_per_host"`
	MaxConnectionsPerHost      int `yaml:"max_connections_per_host"`
	PreparedStatementCacheSize int `yaml:"prepared_statement_cache_size"`
	ReprepareConcurrency       int `yaml:"reprepare_concurrency"`

	TLS *yamlTLSConfig `yaml:"tls"`
}

type yamlTLSConfig struct {
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	CAFile             string `yaml:"ca_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

var consistencyNames = map[string]frame.Consistency{
	"ANY": frame.ANY, "ONE": frame.ONE, "TWO": frame.TWO, "THREE": frame.THREE,
	"QUORUM": frame.QUORUM, "ALL": frame.ALL, "LOCAL_QUORUM": frame.LOCALQUORUM,
	"EACH_QUORUM": frame.EACHQUORUM, "SERIAL": frame.SERIAL,
	"LOCAL_SERIAL": frame.LOCALSERIAL, "LOCAL_ONE": frame.LOCALONE,
}

// LoadSessionConfigYAML reads a YAML file describing a SessionConfig and
// returns it applied on top of DefaultSessionConfig, the way an
// operator-managed deployment externalizes hosts, credentials and pool
// sizing without a code change.
func LoadSessionConfigYAML(path string) (SessionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("cql: read config %s: %w", path, err)
	}

	var y yamlSessionConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return SessionConfig{}, fmt.Errorf("cql: parse config %s: %w", path, err)
	}

	if len(y.Hosts) == 0 {
		return SessionConfig{}, fmt.Errorf("cql: config %s: hosts must not be empty", path)
	}

	cfg := DefaultSessionConfig(y.Keyspace, y.Hosts...)
	cfg.Username = y.Username
	cfg.Password = y.Password
	cfg.LocalDC = y.LocalDC

	if y.ConnectTimeout != "" {
		d, err := time.ParseDuration(y.ConnectTimeout)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("cql: config %s: parse connect_timeout: %w", path, err)
		}
		cfg.ConnectTimeout = d
	}
	if y.HeartbeatInterval != "" {
		d, err := time.ParseDuration(y.HeartbeatInterval)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("cql: config %s: parse heartbeat_interval: %w", path, err)
		}
		cfg.HeartbeatInterval = d
	}
	if y.Consistency != "" {
		c, ok := consistencyNames[y.Consistency]
		if !ok {
			return SessionConfig{}, fmt.Errorf("cql: config %s: unknown consistency %q", path, y.Consistency)
		}
		cfg.DefaultConsistency = c
	}
	switch y.Compression {
	case "", "none":
	case "lz4":
		cfg.Compression = frame.Lz4
	case "snappy":
		cfg.Compression = frame.Snappy
	default:
		return SessionConfig{}, fmt.Errorf("cql: config %s: unknown compression %q", path, y.Compression)
	}
	if y.CoreConnectionsPerHost > 0 {
		cfg.CoreConnectionsPerHost = y.CoreConnectionsPerHost
	}
	if y.MaxConnectionsPerHost > 0 {
		cfg.MaxConnectionsPerHost = y.MaxConnectionsPerHost
	}
	if y.PreparedStatementCacheSize > 0 {
		cfg.PreparedStatementCacheSize = y.PreparedStatementCacheSize
	}
	if y.ReprepareConcurrency > 0 {
		cfg.ReprepareConcurrency = y.ReprepareConcurrency
	}

	if y.TLS != nil {
		tlsConfig, err := loadTLSConfig(y.TLS)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("cql: config %s: tls: %w", path, err)
		}
		cfg.TLSConfig = tlsConfig
	}

	if err := cfg.validate(); err != nil {
		return SessionConfig{}, err
	}
	return cfg, nil
}

func loadTLSConfig(y *yamlTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName:         y.ServerName,
		InsecureSkipVerify: y.InsecureSkipVerify,
	}

	if y.CertFile != "" || y.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(y.CertFile, y.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if y.CAFile != "" {
		ca, err := os.ReadFile(y.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("no certificates found in %s", y.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
