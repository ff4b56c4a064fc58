package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

var briefTemplate = template.Must(template.New("brief").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"formatDate": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(layout)
	},
	"paragraphs": paragraphs,
	"size":       humanSize,
}).Parse(briefHTML))

// RenderBriefHTML renders a brief as a standalone HTML page.
func RenderBriefHTML(brief Brief) (string, error) {
	var buf bytes.Buffer
	if err := briefTemplate.Execute(&buf, brief); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// paragraphs splits text on blank lines, dropping empty blocks.
func paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

const briefHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .tag { display: inline-block; background: #eee; border-radius: 3px; padding: 0 0.4rem; margin-right: 0.3rem; }
    table { border-collapse: collapse; width: 100%; }
    td, th { text-align: left; padding: 0.25rem 0.5rem; border-bottom: 1px solid #ddd; }
    .note { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.75rem 0; border-left: 3px solid #333; }
    .note .by { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{upper .Status}} | {{.Owner}}{{with formatDate .UpdatedAt "Jan 2, 2006"}} | updated {{.}}{{end}}</div>
  {{if .Tags}}<p>{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</p>{{end}}
  {{range paragraphs .Description}}<p>{{.}}</p>
  {{end}}
  <h2>Team</h2>
  <table>
    <tr><th>Name</th><th>Role</th></tr>
    <tr><td>{{.Owner}}</td><td>owner</td></tr>
    {{range .Members}}<tr><td>{{.Name}}</td><td>{{.Role}}</td></tr>
    {{end}}
  </table>
  {{if .Files}}
  <h2>Files</h2>
  <table>
    {{range .Files}}<tr><td>{{.Name}}</td><td>{{size .Size}}</td></tr>
    {{end}}
  </table>
  {{end}}
  {{if .Messages}}
  <h2>Recent messages</h2>
  {{range .Messages}}<div class="note"><div class="by">{{.Author}} {{formatDate .At "Jan 2, 2006 15:04"}}</div>{{.Body}}</div>
  {{end}}
  {{end}}
  <p class="meta">Generated {{formatDate .GeneratedAt "Jan 2, 2006 15:04 MST"}}</p>
</body>
</html>`
