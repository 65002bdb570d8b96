package redis

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryKey(t *testing.T) {
	assert.Equal(t, "cache:2:u1:dashboard_summary_week", entryKey("u1", "dashboard_summary_week"))
}

func TestEntryKey_SubjectsWithColonsDoNotCollide(t *testing.T) {
	assert.NotEqual(t, entryKey("a:b", "c"), entryKey("a", "b:c"))
	assert.NotEqual(t, entryKey("", "a:b"), entryKey("a", "b"))
}

// SCAN MATCH and path.Match agree on the glob syntax used here.
func matches(t *testing.T, pattern, key string) bool {
	t.Helper()
	ok, err := path.Match(pattern, key)
	require.NoError(t, err)
	return ok
}

func TestSubjectPattern_StaysWithinSubject(t *testing.T) {
	pattern := subjectPattern("a")

	assert.True(t, matches(t, pattern, entryKey("a", "b:c")))
	assert.True(t, matches(t, pattern, entryKey("a", "x")))
	assert.False(t, matches(t, pattern, entryKey("a:b", "c")))
	assert.False(t, matches(t, pattern, entryKey("ab", "c")))
}

func TestPrefixPattern(t *testing.T) {
	pattern := prefixPattern("u*1", "dashboard_summary_")

	assert.True(t, matches(t, pattern, entryKey("u*1", "dashboard_summary_week")))
	assert.False(t, matches(t, pattern, entryKey("u21", "dashboard_summary_week")))
	assert.False(t, matches(t, pattern, entryKey("u*1", "profile_summary")))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "cache:2:u1:dashboard_summary_", escapeGlob("cache:2:u1:dashboard_summary_"))
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapeGlob(`a*b?c[d]e\f`))
}
