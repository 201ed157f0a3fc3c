package postgrest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restbridge/internal/cache"
)

// unquote reverses Quote for round-trip checks.
func unquote(t *testing.T, s string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`), "not quoted: %s", s)
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

func TestEscape_Unreserved(t *testing.T) {
	e := NewEscaper(nil)

	tests := []struct {
		in   any
		want string
	}{
		{"active", "active"},
		{"user@example", "user@example"},
		{"+1234567890", "+1234567890"},
		{"", ""},
		{42, "42"},
		{int64(-7), "-7"},
		{float64(5), "5"},
		{true, "true"},
		{false, "false"},
		{nil, "null"},
		{json.Number("12"), "12"},
		{"path\\test", "path\\test"},
	}
	for _, tt := range tests {
		got := e.Escape(tt.in)
		assert.Equal(t, tt.want, got, "Escape(%#v)", tt.in)
		assert.Equal(t, Stringify(tt.in), got, "unreserved values are not quoted")
	}
}

func TestEscape_Reserved(t *testing.T) {
	e := NewEscaper(nil)

	tests := []struct {
		in   any
		want string
	}{
		{"with spaces", `"with spaces"`},
		{"with,comma", `"with,comma"`},
		{"user@example.com", `"user@example.com"`},
		{"o'reilly", `"o'reilly"`},
		{"Acme (US)", `"Acme (US)"`},
		{"https://x", `"https://x"`},
		{`say "hi"`, `"say \"hi\""`},
		{`C:\dir`, `"C:\\dir"`},
		{`a\"b c`, `"a\\\"b c"`},
		{1.5, `"1.5"`},
	}
	for _, tt := range tests {
		got := e.Escape(tt.in)
		assert.Equal(t, tt.want, got, "Escape(%#v)", tt.in)
		assert.Equal(t, Stringify(tt.in), unquote(t, got), "quoting must be reversible")
	}
}

func TestEscape_BackslashBeforeQuote(t *testing.T) {
	// Escaping quotes first would yield "\\\\\"" style double corruption.
	e := NewEscaper(nil)
	assert.Equal(t, `"\\\" x"`, e.Escape(`\" x`))
}

func TestEscape_Memoized(t *testing.T) {
	c := cache.New[string](cache.Options{Name: "escape", Max: 10})
	e := NewEscaper(c)

	first := e.Escape("with spaces")
	assert.Equal(t, 1, c.Len())

	second := e.Escape("with spaces")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.Stats().Hits)

	// Same stringified input shares an entry.
	e.Escape(7)
	e.Escape("7")
	assert.Equal(t, 2, c.Len())
	assert.Same(t, c, e.Cache())
}

func TestNeedsQuoting(t *testing.T) {
	for _, r := range []string{",", ".", `"`, "'", "(", ")", ":", " "} {
		assert.True(t, NeedsQuoting("a"+r+"b"), "reserved %q", r)
	}
	for _, s := range []string{"abc", "a@b", "a-b", "a_b", "a%b", "a*b", `a\b`} {
		assert.False(t, NeedsQuoting(s), "unreserved %q", s)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"100%", `100\%`},
		{"file_name", `file\_name`},
		{`path\test`, `path\\test`},
		{`\%_`, `\\\%\_`},
		{"50%_discount", `50\%\_discount`},
		{"hello world", "hello world"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeLike(tt.in), "EscapeLike(%q)", tt.in)
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "0.1", Stringify(0.1))
	assert.Equal(t, "1e+21", Stringify(1e21))
	assert.Equal(t, "-3", Stringify(float32(-3)))
	assert.Equal(t, "255", Stringify(uint8(255)))
	assert.Equal(t, "[1 2]", Stringify([]int{1, 2}))
}
