package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilePatternWithMarker(t *testing.T) {
	p := ParseFilePattern("mqlog%g.txt")
	assert.True(t, p.HasGenerationMarker())
	assert.Equal(t, "mqlog3.txt", p.Generation(3))
}

func TestParseFilePatternWithoutMarker(t *testing.T) {
	p := ParseFilePattern("mqlog.txt")
	assert.False(t, p.HasGenerationMarker())
	assert.Equal(t, "mqlog.txt.9", p.Generation(9))
}

func TestParseFilePatternEscapedMarker(t *testing.T) {
	p := ParseFilePattern("mq%%g.txt")
	assert.False(t, p.HasGenerationMarker(), "%%g is a literal, not a marker")
	assert.Equal(t, "mq%g.txt.1", p.Generation(1))
}

func TestParseFilePatternDirectoryKeepsPercent(t *testing.T) {
	p := ParseFilePattern("/var/%glogs/mq%g.txt")
	assert.True(t, p.HasGenerationMarker())
	assert.Equal(t, "/var/%glogs/mq7.txt", p.Generation(7))
}

func TestParseFilePatternTrailingMarker(t *testing.T) {
	p := ParseFilePattern("mqlog.%g")
	assert.True(t, p.HasGenerationMarker())
	assert.Equal(t, "mqlog.5", p.Generation(5))
}
