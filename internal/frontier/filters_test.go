package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternFilter_NoPatternsAllowsEverything(t *testing.T) {
	f := NewPatternFilter(nil, nil)
	assert.True(t, f.Allow("https://example.com/anything"))
}

func TestPatternFilter_ExcludeWinsOverInclude(t *testing.T) {
	f := NewPatternFilter([]string{`.*`}, []string{`/admin`})
	assert.False(t, f.Allow("https://example.com/admin/users"))
	assert.True(t, f.Allow("https://example.com/blog/post"))
}

func TestPatternFilter_IncludeRequiresAtLeastOneMatch(t *testing.T) {
	f := NewPatternFilter([]string{`/blog/`, `/docs/`}, nil)
	assert.True(t, f.Allow("https://example.com/blog/post"))
	assert.True(t, f.Allow("https://example.com/docs/intro"))
	assert.False(t, f.Allow("https://example.com/shop/item"))
}

func TestPatternFilter_InvalidPatternIsIgnoredNotFatal(t *testing.T) {
	f := NewPatternFilter([]string{"("}, nil)
	// "(" fails to compile and is dropped, leaving an empty include list,
	// which allows everything.
	assert.True(t, f.Allow("https://example.com/anything"))
}
