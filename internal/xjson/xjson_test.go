package xjson_test

import (
	"testing"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsMapKeys(t *testing.T) {
	t.Parallel()

	data, err := xjson.Marshal(map[string]any{"b": 2, "a": 1, "c": map[string]int{"z": 1, "y": 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2,"c":{"y":2,"z":1}}`, string(data))
	assert.Equal(t, `{"a":1,"b":2,"c":{"y":2,"z":1}}`, string(data))
}

func TestNormalize_IgnoresFieldOrder(t *testing.T) {
	t.Parallel()

	type ab struct {
		A int    `json:"a"`
		B string `json:"b"`
	}

	type ba struct {
		B string `json:"b"`
		A int    `json:"a"`
	}

	left, err := xjson.Normalize(ab{A: 1, B: "x"})
	require.NoError(t, err)
	right, err := xjson.Normalize(ba{B: "x", A: 1})
	require.NoError(t, err)

	l, err := xjson.Marshal(left)
	require.NoError(t, err)
	r, err := xjson.Marshal(right)
	require.NoError(t, err)

	assert.Equal(t, string(l), string(r))
}

func TestUnmarshal_RawMessage(t *testing.T) {
	t.Parallel()

	var out struct {
		Payload xjson.RawMessage `json:"payload"`
	}

	require.NoError(t, xjson.Unmarshal([]byte(`{"payload":{"k":[1,2]}}`), &out))
	assert.JSONEq(t, `{"k":[1,2]}`, string(out.Payload))
}
