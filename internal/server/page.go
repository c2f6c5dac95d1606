package server

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/conneroisu/winforge/internal/build"
	"github.com/conneroisu/winforge/internal/types"
)

// reportPage is the view model behind the report template.
type reportPage struct {
	Title       string
	GeneratedAt string

	HasResult bool
	Success   bool
	Valid     bool
	Error     string

	OutputPath string
	FileSize   string
	Duration   string
	Passes     int

	Errors      []string
	Warnings    []string
	Suggestions []string

	Document string

	Session sessionStats
}

// sessionStats summarizes the builds run while the server has been up.
type sessionStats struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	InvalidDocuments int64
	AverageDuration  string
	LastBuild        string
}

// newReportPage flattens a build result into template-ready fields.
func newReportPage(result *types.BuildResult, document string, metrics build.MetricsSnapshot) reportPage {
	page := reportPage{
		Title:       "WinForge Build Report",
		GeneratedAt: time.Now().Format(time.RFC1123),
		Document:    document,
		Session: sessionStats{
			TotalBuilds:      metrics.TotalBuilds,
			SuccessfulBuilds: metrics.SuccessfulBuilds,
			FailedBuilds:     metrics.FailedBuilds,
			InvalidDocuments: metrics.InvalidDocuments,
			AverageDuration:  metrics.AverageDuration.Round(time.Millisecond).String(),
		},
	}

	if !metrics.LastBuild.IsZero() {
		page.Session.LastBuild = metrics.LastBuild.Format(time.RFC1123)
	}

	if result == nil {
		return page
	}

	page.HasResult = true
	page.Success = result.Success
	page.Valid = result.Valid
	page.Error = result.Error
	page.OutputPath = result.OutputPath
	page.Warnings = result.Warnings

	if result.Stats != nil {
		page.FileSize = humanize.Bytes(uint64(result.Stats.FileSize))
		page.Duration = result.Stats.Duration.Round(time.Millisecond).String()
		page.Passes = result.Stats.PassesProcessed
	}

	if result.Validation != nil {
		page.Errors = result.Validation.Errors
		page.Suggestions = result.Validation.Suggestions
	}

	return page
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 60rem; padding: 0 1rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
.status { display: inline-block; padding: 0.2rem 0.8rem; border-radius: 4px; color: #fff; font-weight: 600; }
.status.valid { background: #2d8a4e; }
.status.invalid { background: #c0392b; }
.status.failed { background: #7f1d1d; }
.status.idle { background: #6b7280; }
ul.findings { padding-left: 1.4rem; }
li.error { color: #c0392b; }
li.warning { color: #b45309; }
li.suggestion { color: #2563eb; }
table.stats td { padding: 0.15rem 1rem 0.15rem 0; color: #374151; }
pre.document { background: #f3f4f6; border: 1px solid #d1d5db; border-radius: 4px; padding: 1rem; overflow-x: auto; font-size: 0.8rem; }
footer { margin-top: 2rem; color: #9ca3af; font-size: 0.8rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if not .HasResult}}
<p><span class="status idle">WAITING</span> No build has completed yet.</p>
{{else if not .Success}}
<p><span class="status failed">BUILD FAILED</span></p>
<p>{{.Error}}</p>
{{else if .Valid}}
<p><span class="status valid">VALID</span> {{.OutputPath}}</p>
{{else}}
<p><span class="status invalid">INVALID</span> {{.OutputPath}}</p>
{{end}}

{{if .HasResult}}
<table class="stats">
<tr><td>Passes processed</td><td>{{.Passes}}</td></tr>
<tr><td>Output size</td><td>{{.FileSize}}</td></tr>
<tr><td>Build time</td><td>{{.Duration}}</td></tr>
</table>
{{end}}

{{if .Errors}}
<h2>Errors ({{len .Errors}})</h2>
<ul class="findings">
{{range .Errors}}<li class="error">{{.}}</li>
{{end}}</ul>
{{end}}

{{if .Warnings}}
<h2>Warnings ({{len .Warnings}})</h2>
<ul class="findings">
{{range .Warnings}}<li class="warning">{{.}}</li>
{{end}}</ul>
{{end}}

{{if .Suggestions}}
<h2>Suggestions ({{len .Suggestions}})</h2>
<ul class="findings">
{{range .Suggestions}}<li class="suggestion">{{.}}</li>
{{end}}</ul>
{{end}}

{{if .Document}}
<h2>Assembled Document</h2>
<pre class="document">{{.Document}}</pre>
{{end}}

<h2>Session</h2>
<table class="stats">
<tr><td>Total builds</td><td>{{.Session.TotalBuilds}}</td></tr>
<tr><td>Successful</td><td>{{.Session.SuccessfulBuilds}}</td></tr>
<tr><td>Failed</td><td>{{.Session.FailedBuilds}}</td></tr>
<tr><td>Invalid documents</td><td>{{.Session.InvalidDocuments}}</td></tr>
{{if .Session.LastBuild}}<tr><td>Average build time</td><td>{{.Session.AverageDuration}}</td></tr>
<tr><td>Last build</td><td>{{.Session.LastBuild}}</td></tr>{{end}}
</table>

<footer>Generated {{.GeneratedAt}}</footer>
<script>
(function () {
	function connect() {
		var ws = new WebSocket("ws://" + location.host + "/ws");
		ws.onmessage = function (ev) {
			if (ev.data === "reload") {
				location.reload();
			}
		};
		ws.onclose = function () {
			setTimeout(connect, 1000);
		};
	}
	connect();
})();
</script>
</body>
</html>
`))
