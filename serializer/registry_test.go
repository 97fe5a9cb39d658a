package serializer

import (
	"encoding/json"
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/inf.v0"

	"github.com/axonops/cqlmapper/metadata"
)

func TestRegistry_IdentityFallback(t *testing.T) {
	r := NewRegistry()

	out, err := r.Serialize(metadata.Int, 42, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	out, err = r.Deserialize(metadata.Text, "hello", metadata.HintString)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = r.Serialize(metadata.Text, nil, metadata.HintObject)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRegistry_RegisterAndOverride(t *testing.T) {
	r := NewRegistry()
	r.RegisterSerializer(metadata.Int, metadata.HintString, func(v any) (any, error) { return "first", nil })
	r.RegisterSerializer(metadata.Int, metadata.HintString, func(v any) (any, error) { return "second", nil })

	out, err := r.Serialize(metadata.Int, "7", metadata.HintString)
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	// other hints are unaffected
	out, err = r.Serialize(metadata.Int, 7, metadata.HintNumber)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestRegistry_InfersHintOnSerialize(t *testing.T) {
	r := NewRegistry()
	r.RegisterSerializer(metadata.Text, metadata.HintBoolean, func(v any) (any, error) {
		if v.(bool) {
			return "yes", nil
		}
		return "no", nil
	})

	out, err := r.Serialize(metadata.Text, true, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestRegistry_ConverterError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.RegisterDeserializer(metadata.Int, metadata.HintNumber, func(v any) (any, error) { return nil, boom })

	_, err := r.Deserialize(metadata.Int, 1, metadata.HintNumber)
	assert.ErrorIs(t, err, ErrConversion)
	assert.ErrorIs(t, err, boom)
}

func TestHintForType(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want metadata.DataTypeHint
	}{
		{"bool", reflect.TypeFor[bool](), metadata.HintBoolean},
		{"int", reflect.TypeFor[int64](), metadata.HintNumber},
		{"float", reflect.TypeFor[float64](), metadata.HintNumber},
		{"string", reflect.TypeFor[string](), metadata.HintString},
		{"time", reflect.TypeFor[time.Time](), metadata.HintDate},
		{"time pointer", reflect.TypeFor[*time.Time](), metadata.HintDate},
		{"big int", reflect.TypeFor[*big.Int](), metadata.HintNumber},
		{"uuid", reflect.TypeFor[uuid.UUID](), metadata.HintString},
		{"gocql uuid", reflect.TypeFor[gocql.UUID](), metadata.HintString},
		{"bytes", reflect.TypeFor[[]byte](), metadata.HintNone},
		{"map", reflect.TypeFor[map[string]int](), metadata.HintObject},
		{"struct", reflect.TypeFor[struct{ A int }](), metadata.HintObject},
		{"slice", reflect.TypeFor[[]string](), metadata.HintObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HintForType(tt.typ))
		})
	}

	assert.Equal(t, metadata.HintNone, InferHint(nil))
	assert.Equal(t, metadata.HintNumber, InferHint(3))
}

func TestDefault_TextObject(t *testing.T) {
	r := NewDefault()
	type profile struct {
		Name string `json:"name"`
		Tags []string `json:"tags"`
	}

	out, err := r.Serialize(metadata.Text, profile{Name: "a", Tags: []string{"x"}}, metadata.HintNone)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a","tags":["x"]}`, out.(string))

	back, err := r.Deserialize(metadata.Text, out, metadata.HintObject)
	require.NoError(t, err)
	require.IsType(t, json.RawMessage{}, back)

	var p profile
	require.NoError(t, json.Unmarshal(back.(json.RawMessage), &p))
	assert.Equal(t, profile{Name: "a", Tags: []string{"x"}}, p)

	_, err = r.Deserialize(metadata.Text, "{not json", metadata.HintObject)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestDefault_TimeUUID(t *testing.T) {
	r := NewDefault()
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	out, err := r.Serialize(metadata.TimeUUID, when, metadata.HintDate)
	require.NoError(t, err)
	s, ok := out.(string)
	require.True(t, ok)

	parsed, err := gocql.ParseUUID(s)
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Version())

	back, err := r.Deserialize(metadata.TimeUUID, parsed, metadata.HintDate)
	require.NoError(t, err)
	assert.True(t, when.Equal(back.(time.Time)))

	back, err = r.Deserialize(metadata.TimeUUID, s, metadata.HintDate)
	require.NoError(t, err)
	assert.True(t, when.Equal(back.(time.Time)))

	_, err = r.Serialize(metadata.TimeUUID, "yesterday", metadata.HintDate)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestDefault_Timestamp(t *testing.T) {
	r := NewDefault()
	when := time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC)

	out, err := r.Serialize(metadata.Timestamp, when, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, when.UnixMilli(), out)

	back, err := r.Deserialize(metadata.Timestamp, out, metadata.HintDate)
	require.NoError(t, err)
	assert.True(t, when.Equal(back.(time.Time)))

	back, err = r.Deserialize(metadata.Timestamp, "2024-03-01 12:30:00.123Z", metadata.HintDate)
	require.NoError(t, err)
	assert.True(t, when.Equal(back.(time.Time)))

	back, err = r.Deserialize(metadata.Timestamp, "2024-03-01", metadata.HintDate)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(back.(time.Time)))

	_, err = r.Deserialize(metadata.Timestamp, "not a time", metadata.HintDate)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestDefault_Blob(t *testing.T) {
	r := NewDefault()

	out, err := r.Serialize(metadata.Blob, []byte{0x01, 0x02, 0x03}, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, "0x010203", out)

	doc, err := json.Marshal(map[string]any{"payload": out})
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":"0x010203"}`, string(doc))

	back, err := r.Deserialize(metadata.Blob, []byte{0x0a, 0xff}, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, back)

	back, err = r.Deserialize(metadata.Blob, "0x0aff", metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xff}, back)

	_, err = r.Deserialize(metadata.Blob, "0aff", metadata.HintNone)
	assert.ErrorIs(t, err, ErrConversion)

	_, err = r.Serialize(metadata.Blob, 42, metadata.HintNone)
	assert.NoError(t, err, "numbers carry a hint, so no blob converter applies")
}

func TestDefault_UUID(t *testing.T) {
	r := NewDefault()
	id := uuid.New()

	out, err := r.Serialize(metadata.UUID, id.String(), metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, id.String(), out)

	out, err = r.Deserialize(metadata.UUID, gocql.UUID(id), metadata.HintString)
	require.NoError(t, err)
	assert.Equal(t, id.String(), out)

	_, err = r.Serialize(metadata.UUID, "nope", metadata.HintString)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestDefault_Decimal(t *testing.T) {
	r := NewDefault()

	out, err := r.Serialize(metadata.Decimal, 12.5, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12.5"), out)

	doc, err := json.Marshal(map[string]any{"price": out})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":12.5}`, string(doc))

	back, err := r.Deserialize(metadata.Decimal, inf.NewDec(1999, 2), metadata.HintString)
	require.NoError(t, err)
	assert.Equal(t, "19.99", back)

	_, err = r.Serialize(metadata.Decimal, "1.2.3", metadata.HintString)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestDefault_Varint(t *testing.T) {
	r := NewDefault()
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	out, err := r.Serialize(metadata.Varint, huge, metadata.HintNone)
	require.NoError(t, err)
	assert.Equal(t, json.Number("123456789012345678901234567890"), out)

	back, err := r.Deserialize(metadata.Varint, huge, metadata.HintString)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", back)

	_, err = r.Serialize(metadata.Varint, "12x", metadata.HintString)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestDefault_Shared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
