package postgrest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/restbridge/internal/cache"
)

// Escape cache sizing. Escaped literals never change, so the TTL only
// bounds memory held by values that stop being used.
const (
	EscapeCacheMax = 1000
	EscapeCacheTTL = 10 * time.Minute
)

// reservedChars are the characters that force a token to be quoted.
const reservedChars = `,."'(): `

// Escaper converts scalar values into PostgREST literal tokens.
//
// Results are memoized in a bounded cache keyed by the stringified input,
// so repeated literals (enum values, ids) cost one map lookup.
type Escaper struct {
	cache *cache.Cache[string]
}

// NewEscaper creates an Escaper backed by c.
// A nil cache gets a private one sized EscapeCacheMax / EscapeCacheTTL.
func NewEscaper(c *cache.Cache[string]) *Escaper {
	if c == nil {
		c = cache.New[string](cache.Options{
			Name: "escape",
			Max:  EscapeCacheMax,
			TTL:  EscapeCacheTTL,
		})
	}
	return &Escaper{cache: c}
}

// Cache returns the memo cache, for stats and session resets.
func (e *Escaper) Cache() *cache.Cache[string] {
	return e.cache
}

// Escape returns the literal token for v.
//
// Unreserved strings pass through unchanged:
//
//	Escape("active")           → active
//	Escape(42)                 → 42
//	Escape(nil)                → null
//
// Reserved strings are quoted:
//
//	Escape("with spaces")      → "with spaces"
//	Escape(`say "hi"`)         → "say \"hi\""
//	Escape(`C:\path`)          → "C:\\path"
func (e *Escaper) Escape(v any) string {
	s := Stringify(v)
	if out, ok := e.cache.Get(s); ok {
		return out
	}
	out := Quote(s)
	e.cache.Set(s, out)
	return out
}

// EscapeAll escapes each value in order.
func (e *Escaper) EscapeAll(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = e.Escape(v)
	}
	return out
}

// NeedsQuoting reports whether s contains a reserved character.
func NeedsQuoting(s string) bool {
	return strings.ContainsAny(s, reservedChars)
}

// Quote wraps s in double quotes when it contains a reserved character.
// Backslashes are escaped before double quotes.
func Quote(s string) string {
	if !NeedsQuoting(s) {
		return s
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// EscapeLike escapes LIKE/ILIKE metacharacters so a search term matches
// literally. Backslash goes first since it is the escape character.
//
//	EscapeLike("100%")      → 100\%
//	EscapeLike("file_name") → file\_name
//	EscapeLike(`\%_`)       → \\\%\_
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// Stringify returns the literal string form of a scalar.
//
// nil becomes "null", booleans "true"/"false", and integral floats lose
// their decimal point (JSON numbers decode as float64, and 5 must render
// as "5", not "5.000000").
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
