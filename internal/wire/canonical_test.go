package wire

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": true, "y": nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":null,"z":true}}`, string(b))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes to surrogates 0xD83D 0xDE00, which sort before U+FFFD
	// in UTF-16 but after it in UTF-8.
	b, err := MarshalCanonical(map[string]any{"\uFFFD": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFFFD\":1}", string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("<script>&</script>")
	require.NoError(t, err)
	assert.Equal(t, `"<script>&</script>"`, string(b))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	b, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(b))
}

func TestMarshalCanonical_ControlCharacters(t *testing.T) {
	b, err := MarshalCanonical("a\nb\u0001\"\\")
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\u0001\"\\"`, string(b))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"json int", json.Number("10"), "10"},
		{"json integral float", json.Number("1.0"), "1"},
		{"json fraction", json.Number("0.5"), "0.5"},
		{"go int", 3, "3"},
		{"go float", 2.25, "2.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"k": []any{math.Inf(1)}})
	assert.Error(t, err)
}

func TestRequestHash_IgnoresKeyOrderAndWhitespace(t *testing.T) {
	a := RequestHash([]byte(`{"opcode":"validate","source":"x"}`))
	b := RequestHash([]byte(`{ "source": "x",  "opcode": "validate" }`))
	c := RequestHash([]byte(`{"opcode":"validate","source":"y"}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRequestHash_Malformed(t *testing.T) {
	a := RequestHash([]byte(`not json`))
	b := RequestHash([]byte(`not json`))
	assert.Equal(t, a, b)
}

func TestLibraryHash_DomainSeparated(t *testing.T) {
	src := []byte(`function f() { return 1; }`)
	assert.NotEqual(t, LibraryHash(src), hashWithDomain(DomainRequest, src))
	assert.Equal(t, LibraryHash([]byte("e\u0301")), LibraryHash([]byte("\u00e9")))
}
