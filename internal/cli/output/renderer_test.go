package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	return NewRenderer(out, errOut, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{ModeAuto, ModeMarkdown},
		{"", ModeMarkdown},
		{ModeText, ModeText},
		{ModeMarkdown, ModeMarkdown},
		{ModeJSON, ModeJSON},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode)
			assert.False(t, r.IsTTY())
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_Messages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText)

	r.Success("done")
	r.Muted("quiet")
	r.Warning("careful")
	r.Error("broken")
	r.StatusLine("subset_tables", "success", "21 rows")

	assert.Equal(t, "✓ done\nquiet\n✓ subset_tables (21 rows)\n", out.String())
	assert.Equal(t, "! careful\n✗ broken\n", errOut.String())
}

func TestRenderer_Header(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown)
	r.Header(2, "Tables")
	assert.Equal(t, "## Tables\n\n", out.String())

	r, out, _ = newTestRenderer(ModeText)
	r.Header(1, "Tables")
	assert.Equal(t, "Tables\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON)

	require.NoError(t, r.JSONLine(map[string]int{"rows": 9}))
	assert.Equal(t, "{\"rows\":9}\n", out.String())

	out.Reset()
	require.NoError(t, r.JSON(map[string]int{"rows": 9}))
	assert.Equal(t, "{\n  \"rows\": 9\n}\n", out.String())
}

func TestRenderTable(t *testing.T) {
	headers := []string{"Folder", "Table"}
	rows := [][]string{{"input", "trips"}, {"output", "vp"}}

	md := RenderTable(ModeMarkdown, headers, rows)
	assert.Contains(t, md, "| Folder | Table |")
	assert.Contains(t, md, "| input | trips |")

	txt := RenderTable(ModeText, headers, rows)
	assert.Contains(t, txt, "Folder")
	assert.Contains(t, txt, "trips")
	assert.Contains(t, txt, "┌")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Runs\n", FormatHeader(1, "Runs"))
	assert.Equal(t, "# Runs\n", FormatHeader(0, "Runs"))
	assert.Equal(t, "- **Status**: completed", FormatKeyValue("Status", "completed"))
	assert.Equal(t, "Completed", StatusTitle("completed"))
	assert.Equal(t, "Skipped", StatusTitle("skipped"))
}

func TestStatusIcon(t *testing.T) {
	r, _, _ := newTestRenderer(ModeText)
	assert.Equal(t, "✓", r.StatusIcon("completed"))
	assert.Equal(t, "✗", r.StatusIcon("failed"))
	assert.Equal(t, "-", r.StatusIcon("skipped"))
	assert.Equal(t, "?", r.StatusIcon("weird"))
}
