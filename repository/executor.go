package repository

import "context"

// ExecOptions carries per-statement execution flags
type ExecOptions struct {
	Prepare bool
}

// ResultSet is the outcome of one statement. Row keys are the column names as
// reported by the store, which lower-cases unquoted identifiers.
type ResultSet struct {
	Rows    []map[string]any
	Applied bool // result of a conditional (IF EXISTS) statement
}

// Executor runs a parameterized statement. Parameters bind positionally to the
// "?" placeholders in stmt.
type Executor interface {
	Execute(ctx context.Context, stmt string, params []string, opts ExecOptions) (*ResultSet, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, stmt string, params []string, opts ExecOptions) (*ResultSet, error)

// Execute calls f
func (f ExecutorFunc) Execute(ctx context.Context, stmt string, params []string, opts ExecOptions) (*ResultSet, error) {
	return f(ctx, stmt, params, opts)
}
