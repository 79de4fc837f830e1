package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(reportTemplateHTML))

// TemplateData holds data for credit report rendering.
type TemplateData struct {
	BusinessName string
	From         time.Time
	To           time.Time
	Balance      int
	Rows         []TemplateRow
	Entries      []TemplateEntry
	GeneratedAt  time.Time
}

// TemplateRow is one reason's aggregate for the period.
type TemplateRow struct {
	Reason string
	Count  int
	Total  int
}

// TemplateEntry is one ledger line shown in the detail section.
type TemplateEntry struct {
	When   time.Time
	Delta  int
	Reason string
	Ref    string
}

// RenderReportHTML renders the credit report template with provided data.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Credit Report - {{.BusinessName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; }
    th { background: #f5f5f5; }
    .num { text-align: right; }
    .balance { font-size: 1.2em; margin: 1rem 0; }
  </style>
</head>
<body>
  <h1>Credit Report</h1>
  <div class="meta">
    {{.BusinessName}} |
    {{formatDate .From "Jan 2, 2006"}} to {{formatDate .To "Jan 2, 2006"}} |
    generated {{formatDate .GeneratedAt "Jan 2, 2006 15:04 MST"}}
  </div>

  <div class="balance">Current balance: <strong>{{.Balance}}</strong> credits</div>

  <h2>Usage by reason</h2>
  <table>
    <tr><th>Reason</th><th class="num">Entries</th><th class="num">Net credits</th></tr>
    {{range .Rows}}
    <tr><td>{{.Reason}}</td><td class="num">{{.Count}}</td><td class="num">{{.Total}}</td></tr>
    {{else}}
    <tr><td colspan="3">No activity in this period.</td></tr>
    {{end}}
  </table>

  {{if .Entries}}
  <h2>Recent entries</h2>
  <table>
    <tr><th>Date</th><th class="num">Delta</th><th>Reason</th><th>Reference</th></tr>
    {{range .Entries}}
    <tr>
      <td>{{formatDate .When "Jan 2, 2006 15:04"}}</td>
      <td class="num">{{.Delta}}</td>
      <td>{{.Reason}}</td>
      <td>{{.Ref}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
