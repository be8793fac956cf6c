package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_LowercasesHostAndStripsDefaultPort(t *testing.T) {
	assert.Equal(t, "https://example.com/path", Normalize("https://EXAMPLE.com:443/path"))
	assert.Equal(t, "http://example.com/path", Normalize("http://example.com:80/path"))
	assert.Equal(t, "http://example.com:8080/path", Normalize("http://example.com:8080/path"))
}

func TestNormalize_DropsFragmentAndTrailingSlash(t *testing.T) {
	assert.Equal(t, "https://example.com/a", Normalize("https://example.com/a/#section"))
	assert.Equal(t, "https://example.com/", Normalize("https://example.com/"))
}

func TestNormalize_DropsTrackingParamsAndSortsRemaining(t *testing.T) {
	got := Normalize("https://example.com/page?b=2&utm_source=x&a=1&gclid=abc")
	assert.Equal(t, "https://example.com/page?a=1&b=2", got)
}

func TestNormalize_IsIdempotent(t *testing.T) {
	raw := "HTTPS://Example.com:443/a/b/?z=1&utm_campaign=y&a=2#frag"
	once := Normalize(raw)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalize_InvalidURLPassesThrough(t *testing.T) {
	raw := "::not a url::"
	assert.Equal(t, raw, Normalize(raw))
}

func TestInDomain(t *testing.T) {
	assert.True(t, InDomain("https://example.com/a", "example.com"))
	assert.True(t, InDomain("https://blog.example.com/a", "example.com"))
	assert.False(t, InDomain("https://notexample.com/a", "example.com"))
	assert.False(t, InDomain("https://example.org/a", "example.com"))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://Example.com:8080/a"))
	assert.Equal(t, "", Domain("::bad::"))
}
