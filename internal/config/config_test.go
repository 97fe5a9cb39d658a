package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCQLSHRC(t *testing.T) {
	tmpDir := t.TempDir()
	credPath := filepath.Join(tmpDir, "credentials")
	require.NoError(t, os.WriteFile(credPath, []byte("[PlainTextAuthProvider]\npassword = 'fromcreds'\n"), 0600))

	cqlshrcPath := filepath.Join(tmpDir, "cqlshrc")
	cqlshrcContent := `; Test CQLSHRC file
[connection]
hostname = testhost.example.com
port = 9043
connect_timeout = 30

[authentication]
keyspace = test_keyspace
credentials = ` + credPath + `

[auth_provider]
module = cassandra.auth
classname = PlainTextAuthProvider
username = "testuser"

[ssl]
certfile = ~/certs/ca.pem
userkey = ~/certs/client.key
usercert = ~/certs/client.cert
validate = false
`
	require.NoError(t, os.WriteFile(cqlshrcPath, []byte(cqlshrcContent), 0600))

	config := Defaults()
	require.NoError(t, loadCQLSHRC(cqlshrcPath, config))

	assert.Equal(t, "testhost.example.com", config.Host)
	assert.Equal(t, 9043, config.Port)
	assert.Equal(t, 30*time.Second, config.ConnectTimeoutDuration())
	assert.Equal(t, "test_keyspace", config.Keyspace)
	assert.Equal(t, "testuser", config.Username)
	assert.Equal(t, "fromcreds", config.Password)

	require.NotNil(t, config.SSL)
	assert.True(t, config.SSL.Enabled)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "certs/ca.pem"), config.SSL.CAPath)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "certs/client.key"), config.SSL.KeyPath)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "certs/client.cert"), config.SSL.CertPath)
	assert.True(t, config.SSL.InsecureSkipVerify)
}

func TestLoadCredentialsFile(t *testing.T) {
	credPath := filepath.Join(t.TempDir(), "credentials")
	credContent := `; Credentials file
[PlainTextAuthProvider]
username = creduser
password = credpass123

[other]
username = ignored
`
	require.NoError(t, os.WriteFile(credPath, []byte(credContent), 0600))

	config := &Config{}
	require.NoError(t, loadCredentialsFile(credPath, config))
	assert.Equal(t, "creduser", config.Username)
	assert.Equal(t, "credpass123", config.Password)

	assert.Error(t, loadCredentialsFile(filepath.Join(t.TempDir(), "missing"), config))
}

func TestLoadConfig_CustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cqlmapper.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"host": "db.internal",
		"keyspace": "parking",
		"consistency": "LOCAL_QUORUM",
		"schemaDir": "out",
		"replicationFactor": 3
	}`), 0600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", config.Host)
	assert.Equal(t, 9042, config.Port, "defaults survive partial files")
	assert.Equal(t, "parking", config.Keyspace)
	assert.Equal(t, "LOCAL_QUORUM", config.Consistency)
	assert.Equal(t, "out", config.SchemaDir)
	assert.Equal(t, 3, config.ReplicationFactor)
	assert.Equal(t, 10*time.Second, config.RequestTimeoutDuration())
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "config file not found")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestOverrideWithEnvVars(t *testing.T) {
	t.Setenv("CASSANDRA_HOST", "cassandra-host")
	t.Setenv("CQLMAPPER_HOST", "mapper-host")
	t.Setenv("CASSANDRA_PORT", "9999")
	t.Setenv("CQLMAPPER_KEYSPACE", "ks")
	t.Setenv("CQLMAPPER_REPLICATION_FACTOR", "-2")
	t.Setenv("CQLMAPPER_SCHEMA_DIR", "/tmp/schemas")
	t.Setenv("CQLMAPPER_DEBUG", "true")

	config := Defaults()
	OverrideWithEnvVars(config)

	assert.Equal(t, "mapper-host", config.Host)
	assert.Equal(t, 9999, config.Port)
	assert.Equal(t, "ks", config.Keyspace)
	assert.Equal(t, 1, config.ReplicationFactor, "invalid values are ignored")
	assert.Equal(t, "/tmp/schemas", config.SchemaDir)
	assert.True(t, config.Debug)
}
