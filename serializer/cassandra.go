package serializer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/google/uuid"
	"gopkg.in/inf.v0"

	"github.com/axonops/cqlmapper/metadata"
)

// timestampLayouts are tried in order when a timestamp arrives as text
var timestampLayouts = [...]string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02",
}

var defaultRegistry = sync.OnceValue(NewDefault)

// Default returns the process-wide registry holding the built-in converters
func Default() *Registry {
	return defaultRegistry()
}

// NewDefault creates a registry holding the built-in Cassandra converters.
// Serialized values are shaped for INSERT ... JSON.
func NewDefault() *Registry {
	r := NewRegistry()

	r.RegisterSerializer(metadata.Text, metadata.HintObject, objectToJSON)
	r.RegisterDeserializer(metadata.Text, metadata.HintObject, jsonToObject)

	r.RegisterSerializer(metadata.TimeUUID, metadata.HintDate, timeToTimeUUID)
	r.RegisterDeserializer(metadata.TimeUUID, metadata.HintDate, timeUUIDToTime)

	r.RegisterSerializer(metadata.Timestamp, metadata.HintDate, timeToTimestamp)
	r.RegisterDeserializer(metadata.Timestamp, metadata.HintDate, timestampToTime)

	r.RegisterSerializer(metadata.UUID, metadata.HintString, canonicalUUID)
	r.RegisterDeserializer(metadata.UUID, metadata.HintString, canonicalUUID)
	r.RegisterSerializer(metadata.TimeUUID, metadata.HintString, canonicalUUID)
	r.RegisterDeserializer(metadata.TimeUUID, metadata.HintString, canonicalUUID)

	r.RegisterSerializer(metadata.Decimal, metadata.HintNumber, decimalToNumber)
	r.RegisterDeserializer(metadata.Decimal, metadata.HintNumber, decimalToNumber)
	r.RegisterSerializer(metadata.Decimal, metadata.HintString, decimalToString)
	r.RegisterDeserializer(metadata.Decimal, metadata.HintString, decimalToString)

	// []byte carries no hint
	r.RegisterSerializer(metadata.Blob, metadata.HintNone, bytesToBlob)
	r.RegisterDeserializer(metadata.Blob, metadata.HintNone, blobToBytes)

	r.RegisterSerializer(metadata.Varint, metadata.HintNumber, varintToNumber)
	r.RegisterDeserializer(metadata.Varint, metadata.HintNumber, varintToNumber)
	r.RegisterSerializer(metadata.Varint, metadata.HintString, varintToString)
	r.RegisterDeserializer(metadata.Varint, metadata.HintString, varintToString)

	return r
}

func objectToJSON(value any) (any, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}

// jsonToObject returns the stored document as json.RawMessage for the caller to
// unmarshal into its own type
func jsonToObject(value any) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case *string:
		raw = []byte(*v)
	default:
		return nil, fmt.Errorf("expected text, got %T", value)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("stored value is not a JSON document")
	}
	return json.RawMessage(raw), nil
}

func timeToTimeUUID(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return gocql.UUIDFromTime(v).String(), nil
	case *time.Time:
		return gocql.UUIDFromTime(*v).String(), nil
	default:
		return nil, fmt.Errorf("expected time.Time, got %T", value)
	}
}

func timeUUIDToTime(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case gocql.UUID:
		return v.Time(), nil
	case *gocql.UUID:
		return v.Time(), nil
	case string:
		u, err := gocql.ParseUUID(v)
		if err != nil {
			return nil, err
		}
		return u.Time(), nil
	default:
		return nil, fmt.Errorf("expected timeuuid, got %T", value)
	}
}

func timeToTimestamp(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UnixMilli(), nil
	case *time.Time:
		return v.UnixMilli(), nil
	default:
		return nil, fmt.Errorf("expected time.Time, got %T", value)
	}
}

func timestampToTime(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		return *v, nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unrecognized timestamp %q", v)
	default:
		return nil, fmt.Errorf("expected timestamp, got %T", value)
	}
}

func canonicalUUID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case uuid.UUID:
		return v.String(), nil
	case gocql.UUID:
		return v.String(), nil
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case []byte:
		u, err := uuid.FromBytes(v)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case fmt.Stringer:
		return canonicalUUID(v.String())
	default:
		return nil, fmt.Errorf("expected uuid, got %T", value)
	}
}

// bytesToBlob renders the 0x-prefixed hex literal INSERT ... JSON expects for blobs
func bytesToBlob(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return "0x" + hex.EncodeToString(v), nil
	case *[]byte:
		return "0x" + hex.EncodeToString(*v), nil
	default:
		return nil, fmt.Errorf("expected []byte, got %T", value)
	}
}

func blobToBytes(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		digits, ok := strings.CutPrefix(v, "0x")
		if !ok {
			return nil, fmt.Errorf("blob literal %q has no 0x prefix", v)
		}
		return hex.DecodeString(digits)
	default:
		return nil, fmt.Errorf("expected blob, got %T", value)
	}
}

func toDec(value any) (*inf.Dec, error) {
	var s string
	switch v := value.(type) {
	case *inf.Dec:
		return v, nil
	case inf.Dec:
		return &v, nil
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprint(v)
	case *big.Int:
		return new(inf.Dec).SetUnscaledBig(v), nil
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return nil, fmt.Errorf("expected decimal, got %T", value)
	}

	d, ok := new(inf.Dec).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", s)
	}
	return d, nil
}

// decimalToNumber keeps full precision by emitting a json.Number
func decimalToNumber(value any) (any, error) {
	d, err := toDec(value)
	if err != nil {
		return nil, err
	}
	return json.Number(d.String()), nil
}

func decimalToString(value any) (any, error) {
	d, err := toDec(value)
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return v, nil
	case big.Int:
		return &v, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case json.Number:
		return toBigInt(v.String())
	case string:
		b, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("invalid varint %q", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected varint, got %T", value)
	}
}

func varintToNumber(value any) (any, error) {
	b, err := toBigInt(value)
	if err != nil {
		return nil, err
	}
	return json.Number(b.String()), nil
}

func varintToString(value any) (any, error) {
	b, err := toBigInt(value)
	if err != nil {
		return nil, err
	}
	return b.String(), nil
}
