package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// readJSON decodes a JSON document from a file path, from stdin when
// source is "-", or inline when source starts with '{' or '['. Numbers
// are kept as json.Number.
func readJSON(source string, stdin io.Reader, v any) error {
	var data []byte
	switch trimmed := strings.TrimSpace(source); {
	case trimmed == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return &inputError{fmt.Errorf("reading stdin: %w", err)}
		}
		data = b
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		data = []byte(trimmed)
	default:
		b, err := os.ReadFile(source)
		if err != nil {
			return &inputError{fmt.Errorf("reading %s: %w", source, err)}
		}
		data = b
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &inputError{fmt.Errorf("decoding %s: %w", describeSource(source), err)}
	}
	return nil
}

func describeSource(source string) string {
	switch trimmed := strings.TrimSpace(source); {
	case trimmed == "-":
		return "stdin"
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return "inline JSON"
	default:
		return source
	}
}
