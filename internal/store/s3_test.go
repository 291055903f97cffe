package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	cases := []struct {
		rel  string
		want string
	}{
		{"photo.jpg", "photo.pdf"},
		{"report.pdf", "report.pdf"},
		{"invoices/2024/q1.xlsx", "invoices/2024/q1.pdf"},
		{"archive.tar.gz", "archive.tar.pdf"},
		{"noext", "noext.pdf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Key(tc.rel), "rel %q", tc.rel)
	}
}

func TestParseEndpoint(t *testing.T) {
	host, secure, err := parseEndpoint("http://localhost:8333")
	require.NoError(t, err)
	assert.Equal(t, "localhost:8333", host)
	assert.False(t, secure)

	host, secure, err = parseEndpoint("https://s3.example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com", host)
	assert.True(t, secure)

	host, secure, err = parseEndpoint("localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
}
