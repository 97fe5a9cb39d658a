package repository

import (
	"context"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
)

const appliedColumn = "[applied]"

// SessionExecutor runs statements on a gocql session. The driver prepares every
// statement that carries bound values, so ExecOptions.Prepare needs no handling here.
type SessionExecutor struct {
	Session     *gocql.Session
	Consistency gocql.Consistency
}

// NewSessionExecutor wraps session, executing at the given consistency level
func NewSessionExecutor(session *gocql.Session, consistency gocql.Consistency) *SessionExecutor {
	return &SessionExecutor{Session: session, Consistency: consistency}
}

// Execute implements Executor
func (e *SessionExecutor) Execute(ctx context.Context, stmt string, params []string, opts ExecOptions) (*ResultSet, error) {
	values := make([]interface{}, len(params))
	for i, p := range params {
		values[i] = p
	}

	iter := e.Session.Query(stmt, values...).Consistency(e.Consistency).IterContext(ctx)

	rs := &ResultSet{Applied: true}
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		if applied, ok := row[appliedColumn].(bool); ok {
			rs.Applied = applied
			delete(row, appliedColumn)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return rs, nil
}
