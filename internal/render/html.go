// Package render writes the TopDeals view as a standalone HTML report.
package render

import (
	"html/template"
	"os"
	"path/filepath"

	"github.com/iWorld-y/deal_radar/internal/model"
)

const reportTpl = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Deal Radar | Pipeline Risk Report</title>
    <style>
        :root {
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 960px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 30px; }
        h1 { font-size: 2.2rem; margin: 0 0 8px 0; }
        .date-info { color: var(--text-secondary); }
        .degraded-note {
            background: #fef9c3; border: 1px solid #fde047; color: #713f12;
            border-radius: 8px; padding: 12px 16px; margin-bottom: 24px;
        }
        .deal-card {
            background: var(--card-bg);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            padding: 20px 24px;
            margin-bottom: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
        }
        .deal-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 12px; }
        .deal-title { font-size: 1.3rem; font-weight: 700; }
        .deal-meta { color: var(--text-secondary); font-size: 0.9rem; margin-bottom: 10px; }
        .tier-badge { padding: 4px 14px; border-radius: 20px; font-weight: bold; }
        .tier-red { background: #fee2e2; color: #991b1b; }
        .tier-yellow { background: #fef9c3; color: #854d0e; }
        .tier-green { background: #dcfce7; color: #166534; }
        .signals { margin: 10px 0; }
        .signals li { color: #334155; margin-bottom: 4px; }
        .explanation {
            background: #f8fafc; border-left: 4px solid #2563eb;
            border-radius: 6px; padding: 12px 16px; margin-top: 10px;
        }
        .explanation .action { font-weight: 600; margin-top: 6px; }
        .no-explanation { color: var(--text-secondary); font-style: italic; margin-top: 10px; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>📡 Deal Radar</h1>
            <div class="date-info">{{ .GeneratedAt.Format "2006-01-02 15:04" }} • {{ len .Deals }} deals ranked • {{ .Summary.Scored }} scored</div>
        </header>

        {{if .Degraded}}
        <div class="degraded-note">
            ⚠ Incomplete run: {{ .Summary.Skipped }} deal(s) skipped at normalization,
            {{ .Summary.Degraded }} without explanation, {{ .Summary.Excluded }} excluded while aggregating.
        </div>
        {{end}}

        {{range .Deals}}
        <div class="deal-card">
            <div class="deal-header">
                <div class="deal-title">{{if .Deal.Name}}{{.Deal.Name}}{{else}}Deal {{.Deal.ID}}{{end}}</div>
                <div class="tier-badge tier-{{.Assessment.Tier}}">{{.Assessment.Tier}} • {{printf "%.0f" .Assessment.Score}}/100</div>
            </div>
            <div class="deal-meta">
                Stage: {{.Deal.Stage}} • Amount: {{printf "%.0f" .Deal.Amount}} • Owner: {{.Deal.Owner}}
            </div>
            {{if .Assessment.Signals}}
            <ul class="signals">
                {{range .Assessment.Signals}}
                <li><strong>{{.Name}}</strong> (+{{printf "%.0f" .Points}}): {{.Detail}}</li>
                {{end}}
            </ul>
            {{end}}
            {{if .Explanation}}
            <div class="explanation">
                <div>{{.Explanation.Causes}}</div>
                <div class="action">→ {{.Explanation.Action}}</div>
            </div>
            {{else if ne .Assessment.Tier "green"}}
            <div class="no-explanation">No explanation available for this deal.</div>
            {{end}}
        </div>
        {{end}}
    </div>
</body>
</html>
`

// data wraps TopDeals with a precomputed degraded flag for the template.
type data struct {
	*model.TopDeals
	Degraded bool
}

// WriteHTML renders the report to path, creating parent directories as
// needed.
func WriteHTML(top *model.TopDeals, path string) error {
	t, err := template.New("report").Parse(reportTpl)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := data{
		TopDeals: top,
		Degraded: top.Summary.Skipped > 0 || top.Summary.Degraded > 0 || top.Summary.Excluded > 0,
	}
	return t.Execute(f, d)
}
