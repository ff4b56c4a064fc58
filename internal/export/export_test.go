package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleBrief() Brief {
	return Brief{
		Title:       "Solar <kiosk>",
		Description: "Off-grid charging.\n\nSecond paragraph.",
		Status:      "active",
		Tags:        []string{"energy", "outdoor"},
		Owner:       "Owner",
		UpdatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Members:     []Member{{Name: "Editor", Role: "editor"}},
		Messages:    []Note{{Author: "Editor", Body: "Panels ordered", At: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}},
		Files:       []File{{Name: "wiring.pdf", Size: 2048}},
		GeneratedAt: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestRenderBriefHTML(t *testing.T) {
	html, err := RenderBriefHTML(sampleBrief())
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>Solar &lt;kiosk&gt;</h1>")
	assert.Contains(t, html, "<p>Off-grid charging.</p>")
	assert.Contains(t, html, "<p>Second paragraph.</p>")
	assert.Contains(t, html, "ACTIVE")
	assert.Contains(t, html, `<span class="tag">energy</span>`)
	assert.Contains(t, html, "<td>Editor</td><td>editor</td>")
	assert.Contains(t, html, "<td>wiring.pdf</td><td>2.0 KB</td>")
	assert.Contains(t, html, "Panels ordered")
	assert.Contains(t, html, "Mar 1, 2026")
}

func TestRenderBriefHTMLOmitsEmptySections(t *testing.T) {
	html, err := RenderBriefHTML(Brief{Title: "Bare", Owner: "Owner", Status: "draft"})
	require.NoError(t, err)

	assert.NotContains(t, html, "<h2>Files</h2>")
	assert.NotContains(t, html, "<h2>Recent messages</h2>")
	assert.NotContains(t, html, "updated")
}

func TestExportHTML(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t), Options{})
	result, err := svc.Export(context.Background(), sampleBrief(), FormatHTML)
	require.NoError(t, err)

	assert.Equal(t, "solar-kiosk.html", result.Filename)
	assert.Equal(t, "text/html; charset=utf-8", result.MimeType)
	assert.True(t, strings.HasPrefix(string(result.Data), "<!DOCTYPE html>"))
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(nil, Options{})
	_, err := svc.Export(context.Background(), sampleBrief(), Format("odt"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestExportPDFWithoutChromium(t *testing.T) {
	if _, err := chromiumPath(); err == nil {
		t.Skip("chromium is installed")
	}
	_, err := NewService(nil, Options{}).Export(context.Background(), sampleBrief(), FormatPDF)
	assert.True(t, errors.Is(err, ErrPDFDependencyMissing))
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": FormatHTML, "html": FormatHTML, "pdf": FormatPDF, "docx": FormatDOCX} {
		got, err := ParseFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("PDF ")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KB", humanSize(1536))
	assert.Equal(t, "3.0 MB", humanSize(3*1024*1024))
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"My Project v1.2", "my-project-v1-2"},
		{"  Solar <kiosk>  ", "solar-kiosk"},
		{"Café déco", "caf-d-co"},
		{"!!!", "project-brief"},
		{"", "project-brief"},
		{strings.Repeat("ab ", 30), strings.TrimRight(strings.Repeat("ab-", 20), "-")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, fileStem(tt.input))
		})
	}
}

func TestPandocArgsCarryBriefMetadata(t *testing.T) {
	args := pandocArgs(sampleBrief(), "/etc/collab/brief.docx")
	assert.Contains(t, args, "--to=docx")
	assert.Contains(t, args, "--metadata=title:Solar <kiosk>")
	assert.Contains(t, args, "--metadata=author:Owner")
	assert.Contains(t, args, "--metadata=date:2026-03-03")
	assert.Contains(t, args, "--metadata=keywords:energy, outdoor")
	assert.Equal(t, "--reference-doc=/etc/collab/brief.docx", args[len(args)-1])

	bare := pandocArgs(Brief{Title: "Untagged"}, "")
	for _, arg := range bare {
		assert.False(t, strings.HasPrefix(arg, "--reference-doc"), arg)
		assert.False(t, strings.HasPrefix(arg, "--metadata=keywords"), arg)
		assert.False(t, strings.HasPrefix(arg, "--metadata=author"), arg)
	}
}

func TestPrintParamsFooterEscapesTitle(t *testing.T) {
	params, err := printParams(sampleBrief())
	require.NoError(t, err)
	assert.True(t, params.DisplayHeaderFooter)
	assert.InDelta(t, 11.69, params.PaperHeight, 0.001)
	assert.Contains(t, params.FooterTemplate, "Solar &lt;kiosk&gt;")
	assert.Contains(t, params.FooterTemplate, `class="pageNumber"`)
}
