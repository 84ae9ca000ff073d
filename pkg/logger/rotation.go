package logger

import (
	"fmt"
	"strings"
)

// FilePattern is a parsed rotating-log filename pattern.
//
// A pattern may contain at most one %g generation marker in its base name;
// %%g escapes a literal "%g". Generation files are formed by substituting
// the generation number for the marker, or by appending ".N" when the
// pattern has no marker.
type FilePattern struct {
	prefix        string
	suffix        string
	hasGeneration bool
}

// ParseFilePattern splits pattern around its %g marker. Only the final path
// element is scanned; directory names keep their percent signs.
func ParseFilePattern(pattern string) FilePattern {
	sep := strings.LastIndexAny(pattern, "/\\")
	dir, base := "", pattern
	if sep >= 0 {
		dir, base = pattern[:sep+1], pattern[sep+1:]
	}

	// Scan right to left: the rightmost %g decides. When it is escaped as
	// %%g the pattern has no marker, even if an earlier %g is unescaped.
	for i := len(base) - 2; i >= 0; i-- {
		if base[i] != '%' || base[i+1] != 'g' {
			continue
		}
		if i > 0 && base[i-1] == '%' {
			// %%g: collapse the escape; the pattern has no marker.
			return FilePattern{prefix: dir + base[:i-1] + base[i:]}
		}
		return FilePattern{
			prefix:        dir + base[:i],
			suffix:        base[i+2:],
			hasGeneration: true,
		}
	}
	return FilePattern{prefix: pattern}
}

// Generation returns the filename for generation n.
func (p FilePattern) Generation(n int) string {
	if p.hasGeneration {
		return fmt.Sprintf("%s%d%s", p.prefix, n, p.suffix)
	}
	return fmt.Sprintf("%s.%d", p.prefix, n)
}

// HasGenerationMarker reports whether the pattern contained a %g marker.
func (p FilePattern) HasGenerationMarker() bool {
	return p.hasGeneration
}
