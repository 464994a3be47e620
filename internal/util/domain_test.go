package util

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestETLDPlusOne(t *testing.T) {
	tests := map[string]string{
		"https://www.example.com/x":  "example.com",
		"https://a.b.example.co.uk/": "example.co.uk",
		"http://127.0.0.1:8080/":     "127.0.0.1",
		"http://localhost/":          "localhost",
		"https://EXAMPLE.com./":      "example.com",
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		assert.Equal(t, want, ETLDPlusOne(u), raw)
	}
}

func TestSameSite(t *testing.T) {
	assert.True(t, SameSite("https://www.example.com", "http://example.com/welcome"))
	assert.False(t, SameSite("https://example.com", "https://example.org"))
	assert.False(t, SameSite("https://example.com", "::bad"))
}

func TestIsInternalHost(t *testing.T) {
	internal := []string{"localhost", "127.0.0.1", "10.1.2.3", "192.168.0.10", "[::1]", "metadata.internal", "169.254.169.254"}
	for _, h := range internal {
		assert.True(t, IsInternalHost(h), h)
	}
	external := []string{"example.com", "8.8.8.8", "2001:4860:4860::8888"}
	for _, h := range external {
		assert.False(t, IsInternalHost(h), h)
	}
}
