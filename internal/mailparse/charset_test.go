package mailparse

import (
	"math/rand"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		charset string
		want    string
	}{
		{
			name:    "valid utf-8 passes through",
			content: []byte("héllo wörld"),
			charset: "utf-8",
			want:    "héllo wörld",
		},
		{
			name:    "declared latin1 bytes",
			content: []byte{'c', 'a', 'f', 0xE9},
			charset: "iso-8859-1",
			want:    "café",
		},
		{
			name:    "empty content",
			content: nil,
			charset: "utf-8",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodePayload(tt.content, tt.charset))
		})
	}
}

func TestDecodePayloadUnknownCharset(t *testing.T) {
	// Declared charset nobody has heard of: the result must still be valid
	// UTF-8, whatever the detector makes of the bytes.
	got := DecodePayload([]byte{0xC0, 0xC1, 'a', 0xF5, 'b'}, "x-no-such-charset")
	assert.True(t, utf8.ValidString(got))
	assert.NotEmpty(t, got)
}

func TestDecodePayloadDetectsCharset(t *testing.T) {
	// Long latin1 text with a wrong declared charset: detection has enough
	// signal to identify single-byte western text, and the result must be
	// valid UTF-8 either way.
	latin1 := []byte("L'\xe9t\xe9 dernier, les \xe9l\xe8ves \xe9taient d\xe9j\xe0 pr\xe9par\xe9s pour la rentr\xe9e. ")
	for i := 0; i < 4; i++ {
		latin1 = append(latin1, latin1...)
	}

	got := DecodePayload(latin1, "")
	assert.True(t, utf8.ValidString(got))
	assert.NotEmpty(t, got)
}

// DecodePayload is a total function: no byte sequence may make it fail or
// return invalid UTF-8.
func TestDecodePayloadIsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		content := make([]byte, rng.Intn(512))
		rng.Read(content)

		got := DecodePayload(content, "utf-8")
		assert.True(t, utf8.ValidString(got), "iteration %d produced invalid UTF-8", i)
	}
}
