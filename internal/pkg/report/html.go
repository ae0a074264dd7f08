package report

import (
	"bytes"
	"fmt"
	"html/template"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(count, total int) string {
		if total == 0 {
			return "0"
		}
		return fmt.Sprintf("%.1f", float64(count)*100/float64(total))
	},
	"signed": func(v int) string { return fmt.Sprintf("%+d", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 32px; color: #222; }
h1 { font-size: 22px; }
table { border-collapse: collapse; margin-bottom: 24px; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: right; }
th { background: #f2f2f2; }
.bar { background: #4a78b5; height: 12px; }
.hist td.label { text-align: left; white-space: nowrap; }
.hist td.barcell { width: 400px; text-align: left; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{with .Summary}}
<table>
<tr><th>Opening lines</th><td>{{.Count}}</td></tr>
{{if .Skipped}}<tr><th>Skipped (invalid price)</th><td>{{.Skipped}}</td></tr>{{end}}
<tr><th>Mean favorite price</th><td>{{.MeanFavorite}}</td></tr>
<tr><th>Mean underdog price</th><td>{{.MeanUnderdog}}</td></tr>
<tr><th>Mean implied prob. (favorite)</th><td>{{.MeanFavoriteProb}}</td></tr>
<tr><th>Mean implied prob. (underdog)</th><td>{{.MeanUnderdogProb}}</td></tr>
<tr><th>Mean hold</th><td>{{.MeanHold}}</td></tr>
{{if .Count}}<tr><th>Favorite range</th><td>{{signed .MinFavorite}} / {{signed .MaxFavorite}}</td></tr>
<tr><th>Underdog range</th><td>{{signed .MinUnderdog}} / {{signed .MaxUnderdog}}</td></tr>{{end}}
</table>

<h2>Favorite price distribution</h2>
<table class="hist">
<tr><th>Bucket</th><th>Count</th><th></th></tr>
{{$total := .Count}}{{range .Histogram}}<tr><td class="label">{{.Label}}</td><td>{{.Count}}</td><td class="barcell"><div class="bar" style="width: {{pct .Count $total}}%"></div></td></tr>
{{end}}</table>

<h2>Underdog vs favorite</h2>
<table>
<tr><th>favorite_price</th><th>underdog_price</th></tr>
{{range .Pairs}}<tr><td>{{signed .Favorite}}</td><td>{{signed .Underdog}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

// RenderHTML renders s as a standalone HTML page.
func RenderHTML(s Summary) ([]byte, error) {
	title := fmt.Sprintf("Opening moneylines %s", s.Date)
	if s.Aggregate {
		title = fmt.Sprintf("Opening moneylines, all dates through %s", s.Date)
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		Title   string
		Summary Summary
	}{Title: title, Summary: s})
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}
