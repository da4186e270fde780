// Package yamlutil wraps YAML parsing to isolate the external dependency.
// Config files may reference environment variables so that secrets such as
// chat tokens never have to be written to disk.
package yamlutil

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// MaxInputSize limits YAML input to prevent memory exhaustion (default 1MB).
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
	ErrUnsetVariable  = errors.New("yamlutil: environment variable not set")
)

func validateInput(data []byte, v any) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	if v == nil {
		return ErrNilDestination
	}
	return nil
}

// UnmarshalStrict rejects unknown fields in the input.
func UnmarshalStrict(data []byte, v any) error {
	if err := validateInput(data, v); err != nil {
		return err
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// Marshal encodes v as YAML.
func Marshal(v any) ([]byte, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	return out, nil
}

// ExpandEnv replaces ${VAR} and ${VAR:-default} references in data using
// lookup (os.LookupEnv when nil). A ${VAR} without default that is unset
// is an error listing every missing name. "$$" yields a literal "$"; a bare
// $NAME is left untouched so TeX snippets in config survive.
func ExpandEnv(data []byte, lookup func(string) (string, bool)) ([]byte, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	src := string(data)
	var b strings.Builder
	missing := map[string]bool{}

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != '$' || i+1 >= len(src) {
			b.WriteByte(c)
			continue
		}
		switch src[i+1] {
		case '$':
			b.WriteByte('$')
			i++
		case '{':
			end := strings.IndexByte(src[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			expr := src[i+2 : i+2+end]
			name, def, hasDef := strings.Cut(expr, ":-")
			if val, ok := lookup(name); ok && (val != "" || !hasDef) {
				b.WriteString(val)
			} else if hasDef {
				b.WriteString(def)
			} else {
				missing[name] = true
			}
			i += end + 2
		default:
			b.WriteByte(c)
		}
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: %s", ErrUnsetVariable, strings.Join(names, ", "))
	}
	return []byte(b.String()), nil
}
