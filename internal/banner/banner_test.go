package banner

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrintBanner(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "Redirect chain checker v1.2.3")
	assert.NotContains(t, buf.String(), "\x1b[")
}
