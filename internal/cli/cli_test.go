package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonops/cqlmapper/internal/config"
	"github.com/axonops/cqlmapper/metadata"
)

const declarations = `naming: identity
entities:
  - keyspace: test
    table: complex_things
    partitionKeys: [accountId, solutionId, id]
    clusteringKeys: [message]
    columns:
      - {name: accountId, type: text}
      - {name: solutionId, type: text}
      - {name: id, type: text}
      - {name: message, type: text}
  - keyspace: test
    table: game_scores
    partitionKeys: [user]
    clusteringKeys: [gameTitle]
    columns:
      - {name: user, type: text}
      - {name: gameTitle, type: text}
      - {name: score, type: int}
    materializedViews:
      - {name: by_title, partitionKeys: [gameTitle], clusteringKeys: [user]}
  - keyspace: audit
    table: events
    partitionKeys: [id]
    columns:
      - {name: id, type: uuid}
`

type fakeSession struct {
	stmts  []string
	err    error
	closed bool
	host   string
	drift  map[string][]string
}

func (f *fakeSession) ExecuteStatements(ctx context.Context, stmts []string) error {
	f.stmts = append(f.stmts, stmts...)
	return f.err
}

func (f *fakeSession) VerifyDeclaration(ctx context.Context, decl metadata.Declaration) ([]string, error) {
	return f.drift[decl.Entity.QualifiedTable()], f.err
}

func (f *fakeSession) Close() { f.closed = true }

func writeDeclarations(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(declarations), 0600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func stubConnect(t *testing.T, session *fakeSession) {
	t.Helper()
	orig := connect
	connect = func(cfg *config.Config) (clusterSession, error) {
		session.host = cfg.Host
		return session, nil
	}
	t.Cleanup(func() { connect = orig })
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cqlmapper dev (commit none)\n", out)
}

func TestSchemaPrint(t *testing.T) {
	out, err := run(t, "schema", "print", "--file", writeDeclarations(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS test.complex_things (accountId text, solutionId text, id text, message text, PRIMARY KEY ((accountId, solutionId, id), message));", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "CREATE MATERIALIZED VIEW test.by_title AS SELECT"))
}

func TestSchemaGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	out, err := run(t, "schema", "generate", "-f", writeDeclarations(t), "--out", dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "test.complex_things.cql"),
		filepath.Join(dir, "test.game_scores.cql"),
		filepath.Join(dir, "audit.events.cql"),
	}, strings.Fields(out))

	data, err := os.ReadFile(filepath.Join(dir, "test.game_scores.cql"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE MATERIALIZED VIEW test.by_title")
}

func TestSchemaGenerate_OutFromConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "configured")
	cfgPath := filepath.Join(t.TempDir(), "cqlmapper.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"schemaDir": "`+dir+`"}`), 0600))

	_, err := run(t, "--config", cfgPath, "schema", "generate", "-f", writeDeclarations(t))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "audit.events.cql"))
}

func TestSchemaGenerate_BadDeclarations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - keyspace: test\n    table: t\n"), 0600))

	_, err := run(t, "schema", "generate", "-f", path, "--out", t.TempDir())
	assert.Error(t, err)

	_, err = run(t, "schema", "generate", "--out", t.TempDir())
	assert.ErrorContains(t, err, "file")
}

func TestSchemaApply_DryRun(t *testing.T) {
	out, err := run(t, "schema", "apply", "-f", writeDeclarations(t), "--keyspace-rf", "3", "--dry-run")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "CREATE KEYSPACE IF NOT EXISTS test WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 3};", lines[0])
	assert.Equal(t, "CREATE KEYSPACE IF NOT EXISTS audit WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 3};", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "CREATE TABLE IF NOT EXISTS test.complex_things"))
	assert.True(t, strings.HasPrefix(lines[5], "CREATE TABLE IF NOT EXISTS audit.events"))
}

func TestSchemaApply_Declarations(t *testing.T) {
	session := &fakeSession{}
	stubConnect(t, session)

	out, err := run(t, "schema", "apply", "-f", writeDeclarations(t))
	require.NoError(t, err)
	assert.True(t, session.closed)
	assert.Equal(t, "localhost", session.host)
	require.Len(t, session.stmts, 6)
	assert.Contains(t, session.stmts[0], "'replication_factor': 1")
	assert.Contains(t, out, "Applied 6 statements to localhost:9042")
}

func TestSchemaApply_CQLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.cql")
	require.NoError(t, os.WriteFile(path, []byte("-- bootstrap\nCREATE KEYSPACE IF NOT EXISTS ks WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 1};\nCREATE TABLE IF NOT EXISTS ks.t (id text, note text, PRIMARY KEY ((id)));\n"), 0600))

	session := &fakeSession{}
	stubConnect(t, session)

	_, err := run(t, "schema", "apply", "--cql", path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE KEYSPACE IF NOT EXISTS ks WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 1}",
		"CREATE TABLE IF NOT EXISTS ks.t (id text, note text, PRIMARY KEY ((id)))",
	}, session.stmts)
}

func TestSchemaApply_Errors(t *testing.T) {
	_, err := run(t, "schema", "apply")
	assert.Error(t, err, "one of --file or --cql is required")

	decls := writeDeclarations(t)
	_, err = run(t, "schema", "apply", "-f", decls, "--cql", "x.cql")
	assert.Error(t, err)

	unclosed := filepath.Join(t.TempDir(), "bad.cql")
	require.NoError(t, os.WriteFile(unclosed, []byte("SELECT 'oops;"), 0600))
	_, err = run(t, "schema", "apply", "--cql", unclosed, "--dry-run")
	assert.ErrorContains(t, err, "bad.cql")

	boom := errors.New("statement 1 failed")
	session := &fakeSession{err: boom}
	stubConnect(t, session)
	_, err = run(t, "schema", "apply", "-f", decls)
	assert.ErrorIs(t, err, boom)
	assert.True(t, session.closed)
}

func TestSchemaVerify(t *testing.T) {
	decls := writeDeclarations(t)

	session := &fakeSession{}
	stubConnect(t, session)
	out, err := run(t, "schema", "verify", "-f", decls)
	require.NoError(t, err)
	assert.Equal(t, "3 entities match the cluster\n", out)
	assert.True(t, session.closed)

	session = &fakeSession{drift: map[string][]string{
		"test.game_scores": {"test.by_title: materialized view does not exist"},
		"audit.events":     {"audit.events: table does not exist"},
	}}
	stubConnect(t, session)
	out, err = run(t, "schema", "verify", "-f", decls)
	assert.ErrorIs(t, err, ErrSchemaDrift)
	assert.ErrorContains(t, err, "2 difference(s)")
	assert.Equal(t, "test.by_title: materialized view does not exist\naudit.events: table does not exist\n", out)
}
