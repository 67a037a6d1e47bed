package memory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyOrderIndependent(t *testing.T) {
	k1, err := Key("generate", json.RawMessage(`{"prompt":"hi","max_tokens":10}`))
	require.NoError(t, err)
	k2, err := Key("generate", map[string]any{"max_tokens": 10, "prompt": "hi"})
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "generate:"))
}

func TestKeyDistinguishesInputs(t *testing.T) {
	base, _ := Key("generate", map[string]any{"prompt": "hi"})
	other, _ := Key("generate", map[string]any{"prompt": "hello"})
	op, _ := Key("summarize", map[string]any{"prompt": "hi"})

	assert.NotEqual(t, base, other)
	assert.NotEqual(t, base, op)
}

func TestKeyArrayOrderMatters(t *testing.T) {
	a, _ := Key("op", []int{1, 2})
	b, _ := Key("op", []int{2, 1})
	assert.NotEqual(t, a, b)
}

func TestCanonicalizeNumbers(t *testing.T) {
	out, err := Canonicalize([]byte(`{"b":1.50,"a":[3,{"z":1,"y":2}]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[3,{"y":2,"z":1}],"b":1.50}`, string(out))
}

func TestKeyInvalidJSON(t *testing.T) {
	_, err := Key("op", []byte(`{"broken"`))
	assert.Error(t, err)

	for _, trailing := range []string{`{"id":1} {"id":2}`, `{"id":1} garbage`, `1 2`} {
		_, err := Key("lookup", json.RawMessage(trailing))
		assert.Error(t, err, trailing)
	}

	_, err = Key("lookup", json.RawMessage("{\"id\":1}\n  "))
	assert.NoError(t, err, "trailing whitespace")

	out, err := Canonicalize(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
