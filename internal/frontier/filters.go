package frontier

import "regexp"

// PatternFilter applies include/exclude regex rules: exclude patterns
// (any match rejects) take priority over include patterns (if non-empty,
// at least one must match). Patterns are compiled once per job and
// cached here; recompiling per page would be wasteful.
type PatternFilter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewPatternFilter compiles the configured patterns. Patterns that fail
// to compile are rejected by JobConfig.Validate before a filter is ever
// built, so compilation here is infallible in practice; a pattern that
// does fail to compile is dropped from its list.
func NewPatternFilter(includePatterns, excludePatterns []string) *PatternFilter {
	f := &PatternFilter{
		include: make([]*regexp.Regexp, 0, len(includePatterns)),
		exclude: make([]*regexp.Regexp, 0, len(excludePatterns)),
	}
	for _, p := range includePatterns {
		if re, err := regexp.Compile(p); err == nil {
			f.include = append(f.include, re)
		}
	}
	for _, p := range excludePatterns {
		if re, err := regexp.Compile(p); err == nil {
			f.exclude = append(f.exclude, re)
		}
	}
	return f
}

// Allow applies exclude-then-include filtering to a single URL.
func (f *PatternFilter) Allow(url string) bool {
	for _, re := range f.exclude {
		if re.MatchString(url) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
