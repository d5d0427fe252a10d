package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// FormatHeader returns a markdown header.
func FormatHeader(level int, title string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + title + "\n"
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return "- **" + key + "**: " + value
}

// StatusTitle turns a status value like "completed" into "Completed".
func StatusTitle(status string) string {
	return titleCaser.String(status)
}

// Table renders rows under headers. Markdown mode emits a pipe table; text
// mode draws a box table.
func (r *Renderer) Table(headers []string, rows [][]string) {
	r.Println(RenderTable(r.EffectiveMode(), headers, rows))
}

// RenderTable renders a table for the given mode.
func RenderTable(mode Mode, headers []string, rows [][]string) string {
	t := table.NewWriter()

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	if mode == ModeMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}
