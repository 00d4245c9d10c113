package cql

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nativecql/coredriver/frame"
)

func writeYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadSessionConfigYAMLAppliesOverrides(t *testing.T) {
	path := writeYAML(t, `
hosts:
  - "10.0.0.1"
  - "10.0.0.2"
keyspace: "mykeyspace"
username: "alice"
password: "secret"
connect_timeout: "5s"
consistency: "LOCAL_QUORUM"
compression: "lz4"
prepared_statement_cache_size: 512
reprepare_concurrency: 32
`)

	cfg, err := LoadSessionConfigYAML(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Hosts)
	assert.Equal(t, "mykeyspace", cfg.Keyspace)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, frame.LOCALQUORUM, cfg.DefaultConsistency)
	assert.Equal(t, frame.Lz4, cfg.Compression)
	assert.Equal(t, 512, cfg.PreparedStatementCacheSize)
	assert.Equal(t, 32, cfg.ReprepareConcurrency)
}

func TestLoadSessionConfigYAMLMissingHosts(t *testing.T) {
	path := writeYAML(t, `keyspace: "mykeyspace"`)

	_, err := LoadSessionConfigYAML(path)
	assert.ErrorContains(t, err, "hosts must not be empty")
}

func TestLoadSessionConfigYAMLBadDuration(t *testing.T) {
	path := writeYAML(t, `
hosts: ["10.0.0.1"]
connect_timeout: "not-a-duration"
`)

	_, err := LoadSessionConfigYAML(path)
	assert.Error(t, err)
}

func TestLoadSessionConfigYAMLUnknownConsistency(t *testing.T) {
	path := writeYAML(t, `
hosts: ["10.0.0.1"]
consistency: "BOGUS"
`)

	_, err := LoadSessionConfigYAML(path)
	assert.ErrorContains(t, err, "unknown consistency")
}

func TestLoadSessionConfigYAMLUnknownCompression(t *testing.T) {
	path := writeYAML(t, `
hosts: ["10.0.0.1"]
compression: "bogus"
`)

	_, err := LoadSessionConfigYAML(path)
	assert.ErrorContains(t, err, "unknown compression")
}

func TestLoadSessionConfigYAMLMissingFile(t *testing.T) {
	_, err := LoadSessionConfigYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSessionConfigYAMLTLSFromCAFile(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte(testCACertPEM), 0o600))

	path := writeYAML(t, `
hosts: ["10.0.0.1"]
tls:
  ca_file: "`+caPath+`"
  server_name: "scylla.internal"
`)

	cfg, err := LoadSessionConfigYAML(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.TLSConfig)
	assert.Equal(t, "scylla.internal", cfg.TLSConfig.ServerName)
	assert.NotNil(t, cfg.TLSConfig.RootCAs)
}

func TestLoadSessionConfigYAMLTLSBadCAFile(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte("not a certificate"), 0o600))

	path := writeYAML(t, `
hosts: ["10.0.0.1"]
tls:
  ca_file: "`+caPath+`"
`)

	_, err := LoadSessionConfigYAML(path)
	assert.Error(t, err)
}

func TestDefaultSessionConfigValidates(t *testing.T) {
	cfg := DefaultSessionConfig("ks", "10.0.0.1")
	assert.NoError(t, cfg.validate())
}

func TestSessionConfigCloneIsIndependent(t *testing.T) {
	cfg := DefaultSessionConfig("ks", "10.0.0.1")
	clone := cfg.Clone()
	clone.Hosts[0] = "mutated"
	assert.Equal(t, "10.0.0.1", cfg.Hosts[0])
}

// testCACertPEM is a self-signed cert generated solely for
// x509.NewCertPool().AppendCertsFromPEM parsing coverage; it is never used
// to perform an actual TLS handshake in this test suite.
const testCACertPEM = `-----BEGIN CERTIFICATE-----
MIIDBTCCAe2gAwIBAgIUGkwlgNNw4bLqN8pt/qcFQ3WKJ/YwDQYJKoZIhvcNAQEL
BQAwEjEQMA4GA1UEAwwHdGVzdC1jYTAeFw0yNjA4MDYxMDM1NDJaFw0zNjA4MDMx
MDM1NDJaMBIxEDAOBgNVBAMMB3Rlc3QtY2EwggEiMA0GCSqGSIb3DQEBAQUAA4IB
DwAwggEKAoIBAQDBK/tR5nsvojSxdootcSb03gP0Xhfh95PBydcegVm9pKMogoVf
lgFqVNU2ca89oNMg/vn2oErj9Mh4+NfKfyPZIgTzQaMjXQPj8Q/UkO0ppb7KXSF3
eKECRG2lxaeoIsEYNRfVlFUifCnUDvy40TQm7KGJYEClmcnqIPpx0y0W6JDDZKPg
oIcDjmtXhOy8Qf0sN1ImMnNlsmaoYPgFXjQ/z0AsZfH6qy24zVWPGNlz9GVtd9a/
ANMoBX429Vh2Qld1V1JU6inhOgTK+P5/pB68bAwjYTdUFNyVZ1IhH7pCX+SswegL
yHrCZ3JRlkS057W7Yi5tNoxIFgfqs5pRUir1AgMBAAGjUzBRMB0GA1UdDgQWBBRA
WPvnoMkgDFERpUfgGwiueVcYhTAfBgNVHSMEGDAWgBRAWPvnoMkgDFERpUfgGwiu
eVcYhTAPBgNVHRMBAf8EBTADAQH/MA0GCSqGSIb3DQEBCwUAA4IBAQBAQed/waBa
cYi+VgzdL+9v5lN8zxivOnhtZy8kb/tNoE1pMQTyWQj3oP1Yk6mBfJnz3KcyrIs6
5Mh0vfOKa7itKjn2dphA72vK1Zj3nmQreOVk0tbpcKVKYU4kLwCmiexKIB+zgN8q
GxuU8QJRxU0RjRYWaC6hXYnJrvl9kzK4wtOiZe0BMd2V/HfRA6a0oKbHXgW2uAtp
JRFFRYZnSt+ivmBO+ZB9KAlxmlKlNqCS7yhOgDFnEFVXx8TqzZb1iTOxM1Gxd9nA
Gb68AhBgG1F2p6cq8IXFMwIDy9+ASfBtgdFNUJMkoO0hGqelFmvpJMcQahK+2fwJ
HVNdvSsiEAEW
-----END CERTIFICATE-----`
