package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "a", Value: map[string]int{"n": 1}},
		{Key: "b", Value: []string{"x"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("a"), msgs[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Value))
	assert.JSONEq(t, `["x"]`, string(msgs[1].Value))
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode([]Event{{Key: "bad", Value: make(chan int)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Source string `json:"source"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"source":"corpus"}`))
	require.NoError(t, err)
	assert.Equal(t, "corpus", got.Source)

	_, err = DecodeJSON[payload]([]byte(`{`))
	require.Error(t, err)
}
