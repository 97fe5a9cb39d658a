// Package keys checks caller-supplied key queries against an entity's declared
// partition and clustering keys.
//
// Presence is definedness: a key is present when the query holds it with a
// non-nil value, so 0, "" and false all count as supplied.
package keys

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Query maps logical key names to the values a caller is looking up
type Query map[string]any

// Has reports whether key is supplied with a defined value
func (q Query) Has(key string) bool {
	v, ok := q[key]
	return ok && v != nil
}

// KeyValue is one resolved binding for a query parameter
type KeyValue struct {
	Key   string
	Value string
}

// FailureKind names the reason a query was rejected
type FailureKind int

const (
	MissingPartitionKeys FailureKind = iota
	MissingClusteringKeys
	InvalidClusteringOrder
)

// String returns the string representation of FailureKind
func (k FailureKind) String() string {
	switch k {
	case MissingPartitionKeys:
		return "missing partition keys"
	case MissingClusteringKeys:
		return "missing clustering keys"
	case InvalidClusteringOrder:
		return "invalid clustering order"
	default:
		return "unknown"
	}
}

// Failure is a recoverable validation result. Keys lists the missing or
// out-of-order key names in declared order.
type Failure struct {
	Kind FailureKind
	Keys []string
}

// Error implements the error interface
func (f *Failure) Error() string {
	switch f.Kind {
	case MissingPartitionKeys:
		return "all partition keys for the table must be specified: " + strings.Join(f.Keys, ", ")
	case MissingClusteringKeys:
		return "all clustering keys for the table must be specified: " + strings.Join(f.Keys, ", ")
	case InvalidClusteringOrder:
		return "clustering keys must be supplied left to right without gaps: " + strings.Join(f.Keys, ", ")
	default:
		return "invalid key query"
	}
}

// ValidatePartitionKeys resolves every required partition key in declared order
func ValidatePartitionKeys(q Query, required []string) ([]KeyValue, *Failure) {
	return resolve(q, required, MissingPartitionKeys)
}

// ValidateClusteringKeys resolves every required clustering key in declared order
func ValidateClusteringKeys(q Query, required []string) ([]KeyValue, *Failure) {
	return resolve(q, required, MissingClusteringKeys)
}

func resolve(q Query, required []string, kind FailureKind) ([]KeyValue, *Failure) {
	values := make([]KeyValue, 0, len(required))
	var missing []string
	for _, key := range required {
		if !q.Has(key) {
			missing = append(missing, key)
			continue
		}
		values = append(values, KeyValue{Key: key, Value: Stringify(q[key])})
	}
	if len(missing) > 0 {
		return nil, &Failure{Kind: kind, Keys: missing}
	}
	return values, nil
}

// ValidateClusteringOrder reports whether the supplied clustering keys form a
// contiguous prefix of required starting at the first key. Supplying none is a
// valid, empty prefix.
func ValidateClusteringOrder(required []string, q Query) bool {
	return len(outOfOrder(required, q)) == 0
}

// ClusteringPrefix returns the bindings of the supplied clustering prefix, or an
// InvalidClusteringOrder failure naming the keys supplied after a gap.
func ClusteringPrefix(q Query, required []string) ([]KeyValue, *Failure) {
	if bad := outOfOrder(required, q); len(bad) > 0 {
		return nil, &Failure{Kind: InvalidClusteringOrder, Keys: bad}
	}
	var values []KeyValue
	for _, key := range required {
		if !q.Has(key) {
			break
		}
		values = append(values, KeyValue{Key: key, Value: Stringify(q[key])})
	}
	return values, nil
}

// outOfOrder returns the supplied keys that follow the first absent key
func outOfOrder(required []string, q Query) []string {
	var bad []string
	gap := false
	for _, key := range required {
		switch {
		case !q.Has(key):
			gap = true
		case gap:
			bad = append(bad, key)
		}
	}
	return bad
}

// Stringify renders a key value as the string bound to its statement parameter.
// Byte slices become 0x hex text, so they only suit text-typed key columns.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return "0x" + hex.EncodeToString(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
