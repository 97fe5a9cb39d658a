package metadata

import (
	"fmt"
	"strings"
	"unicode"
)

// NameStrategy converts a logical field name into a physical column name
type NameStrategy func(logical string) string

// Identity keeps the logical name
func Identity(logical string) string { return logical }

// LowerCase lower-cases the logical name, matching how Cassandra folds unquoted identifiers
func LowerCase(logical string) string { return strings.ToLower(logical) }

// SnakeCase converts camelCase and PascalCase names to snake_case.
// Acronyms stay together: "userID" -> "user_id", "HTTPServer" -> "http_server".
func SnakeCase(logical string) string {
	runes := []rune(logical)
	var sb strings.Builder
	sb.Grow(len(logical) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// NameStrategyByName resolves "identity", "snake" or "lower"; empty means identity.
func NameStrategyByName(name string) (NameStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "identity", "none":
		return Identity, nil
	case "snake", "snake_case", "snakecase":
		return SnakeCase, nil
	case "lower", "lowercase":
		return LowerCase, nil
	default:
		return nil, fmt.Errorf("%w: unknown naming strategy %q", ErrInvalidMetadata, name)
	}
}

// ColumnOption customizes a column built with Column
type ColumnOption func(*columnBuilder)

type columnBuilder struct {
	meta     ColumnMetadata
	strategy NameStrategy
}

// WithHint sets the data type hint used to pick converters
func WithHint(h DataTypeHint) ColumnOption {
	return func(b *columnBuilder) { b.meta.Hint = h }
}

// WithPhysicalName stores the column under an explicit name
func WithPhysicalName(name string) ColumnOption {
	return func(b *columnBuilder) { b.meta.PhysicalName = name }
}

// WithNaming derives the physical name from the logical name
func WithNaming(s NameStrategy) ColumnOption {
	return func(b *columnBuilder) { b.strategy = s }
}

// WithParams sets collection element types, e.g. WithParams(Text, Int) for map<text, int>
func WithParams(params ...ColumnType) ColumnOption {
	return func(b *columnBuilder) { b.meta.Params = params }
}

// Column declares a mapped field. Without options the physical name equals the logical name.
func Column(logical string, colType ColumnType, opts ...ColumnOption) ColumnMetadata {
	b := &columnBuilder{
		meta:     ColumnMetadata{LogicalName: logical, Type: colType},
		strategy: Identity,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.meta.PhysicalName == "" {
		b.meta.PhysicalName = b.strategy(logical)
	}
	return b.meta
}
