package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, false)

	p.Success("done")
	p.Info("Rows", "42")
	p.Warning("careful", "bucket missing")
	p.Stage("extract", "42 rows")

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "done\n")
	assert.Contains(t, out, "Rows: 42\n")
	assert.Contains(t, out, "careful: bucket missing\n")
	assert.Contains(t, out, "[EXTRACT] 42 rows\n")
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true, false).Success("done")
	assert.Equal(t, Green("done")+"\n", buf.String())
}

func TestPrinterQuietKeepsErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, true)

	p.Logo()
	p.Success("done")
	p.Info("Rows", "42")
	p.Table([][2]string{{"a", "b"}})
	p.Error("load failed", "boom")

	assert.Equal(t, "load failed: boom\n", buf.String())
}

func TestPrinterTableAligns(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false, false).Table([][2]string{{"Date", "20240301"}, {"Staged rows", "3"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "  Date         20240301", lines[0])
	assert.Equal(t, "  Staged rows  3", lines[1])
}
