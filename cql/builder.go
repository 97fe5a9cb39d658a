// Package cql renders parameterized statements for key-based access.
// Values are always bound positionally through "?" placeholders and never
// interpolated into the statement text.
package cql

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/axonops/cqlmapper/keys"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeQueryText collapses runs of whitespace to single spaces and trims the result
func NormalizeQueryText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// BuildWhereClause joins "<key> = ?" fragments with AND, preserving order
func BuildWhereClause(kvs []keys.KeyValue) string {
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = kv.Key + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// Params returns the bound values in the same order as the where clause
func Params(kvs []keys.KeyValue) []string {
	params := make([]string, len(kvs))
	for i, kv := range kvs {
		params[i] = kv.Value
	}
	return params
}

// BuildSelect renders a single-partition select
func BuildSelect(keyspace, table, whereClause string) string {
	return NormalizeQueryText(fmt.Sprintf(`
		SELECT * FROM %s.%s
		WHERE %s;`, keyspace, table, whereClause))
}

// BuildDeleteOne renders a conditional delete of one fully keyed row
func BuildDeleteOne(keyspace, table, whereClause string) string {
	return NormalizeQueryText(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE %s IF EXISTS`, keyspace, table, whereClause))
}

// BuildDeleteMany renders an unconditional delete over a clustering-key prefix
func BuildDeleteMany(keyspace, table, whereClause string) string {
	return NormalizeQueryText(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE %s`, keyspace, table, whereClause))
}

// BuildInsert renders a whole-row JSON insert. The serialized row is the single
// bound parameter.
func BuildInsert(keyspace, table string, row map[string]any) (string, []string, error) {
	doc, err := json.Marshal(row)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize row for %s.%s: %w", keyspace, table, err)
	}
	stmt := fmt.Sprintf("INSERT INTO %s.%s JSON ?", keyspace, table)
	return stmt, []string{string(doc)}, nil
}
