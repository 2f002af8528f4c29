package web

import (
	"bytes"
	"html/template"
	"net/http"

	"mailblast/internal/types"
)

// layoutTpl is the shared page shell. Every page defines a "content" block
// rendered into <main>. Styling is inlined so the tool works without any
// asset pipeline.
const layoutTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} &middot; mailblast</title>
  <style>
    body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 680px; margin: 2rem auto; padding: 0 1rem; color: #1f2933; }
    header { display: flex; justify-content: space-between; align-items: baseline; border-bottom: 1px solid #d9dee3; padding-bottom: .5rem; }
    header h1 { font-size: 1.2rem; margin: 0; }
    header a { color: #1f2933; text-decoration: none; }
    nav a { margin-left: 1rem; color: #3e6990; }
    .flash { padding: .6rem 1rem; border-radius: 4px; margin: 1rem 0; }
    .flash-success { background: #e3f9e5; color: #207227; }
    .flash-error { background: #ffe3e3; color: #ab091e; }
    label { display: block; margin: .8rem 0 .2rem; font-weight: 600; }
    input[type=text], input[type=email], input[type=url], textarea { width: 100%; padding: .4rem; border: 1px solid #cbd2d9; border-radius: 4px; box-sizing: border-box; }
    fieldset { border: 1px solid #d9dee3; border-radius: 4px; margin: 1rem 0; }
    fieldset label { display: inline-block; margin-right: 1rem; font-weight: 400; }
    button { margin-top: 1rem; padding: .5rem 1.4rem; background: #3e6990; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; padding: .3rem .6rem; border-bottom: 1px solid #e4e7eb; }
    .muted { color: #7b8794; }
  </style>
</head>
<body>
  <header>
    <h1><a href="/">mailblast</a></h1>
    <nav><a href="/">Dashboard</a><a href="/subscribe">Subscribe</a></nav>
  </header>
  {{with .Flash}}<div class="flash flash-{{.Kind}}">{{.Message}}</div>{{end}}
  <main>
{{template "content" .}}
  </main>
</body>
</html>`

const dashboardTpl = `{{define "content"}}
<p><strong>{{.ActiveCount}}</strong> active subscriber{{if ne .ActiveCount 1}}s{{end}}</p>

<h2>Compose broadcast</h2>
<form method="post" action="/send">
  <label for="subject">Subject</label>
  <input type="text" id="subject" name="subject" required>

  <label for="body_html">Body (HTML)</label>
  <textarea id="body_html" name="body_html" rows="10" required></textarea>

  <label for="recipients">Extra recipients</label>
  <textarea id="recipients" name="recipients" rows="2" placeholder="one@example.com, two@example.com"></textarea>
  <label><input type="checkbox" name="use_audience" value="1" checked> Include all active subscribers</label>

  <label for="image_url">Image URL</label>
  <input type="url" id="image_url" name="image_url" placeholder="https://">
  <label for="image_file" class="muted">or upload one</label>
  <input type="file" id="image_file" accept="image/*">

  <fieldset>
    <legend>Mode</legend>
    <label><input type="radio" name="mode" value="test" checked> Test</label>
    <label><input type="radio" name="mode" value="send"> Send</label>
    <label for="test_email">Test address</label>
    <input type="email" id="test_email" name="test_email" placeholder="you@example.com">
  </fieldset>

  <button type="submit">Dispatch</button>
</form>

<script>
document.getElementById('image_file').addEventListener('change', async (e) => {
  const file = e.target.files[0];
  if (!file) return;
  const body = new FormData();
  body.append('image', file);
  const res = await fetch('/upload', {method: 'POST', body});
  const data = await res.json();
  if (res.ok) {
    document.getElementById('image_url').value = data.url;
  } else {
    alert(data.error);
  }
});
</script>
{{end}}`

const subscribeTpl = `{{define "content"}}
<h2>Subscribe</h2>
<form method="post" action="/subscribe">
  <label for="name">Name</label>
  <input type="text" id="name" name="name">

  <label for="email">Email</label>
  <input type="email" id="email" name="email" required>

  <button type="submit">Subscribe</button>
</form>
{{end}}`

const unsubscribeTpl = `{{define "content"}}
{{if .Found}}
<h2>You have been unsubscribed</h2>
<p>You will no longer receive broadcasts from this list. Subscribing again
reactivates your address.</p>
{{else}}
<h2>Link not recognized</h2>
<p>This unsubscribe link does not match any subscriber. If you copied it from
an email, make sure the full link was used.</p>
{{end}}
{{end}}`

const reportTpl = `{{define "content"}}
<h2>Dispatch report</h2>
<p>&ldquo;{{.Subject}}&rdquo; &middot; {{.Mode}} mode &middot; {{len .SentOK}} delivered, {{len .SentFail}} failed</p>

{{if .SentOK}}
<h3>Delivered</h3>
<ul>
{{range .SentOK}}  <li>{{.}}</li>
{{end}}</ul>
{{end}}

{{if .SentFail}}
<h3>Failed</h3>
<table>
  <tr><th>Recipient</th><th>Reason</th></tr>
{{range .SentFail}}  <tr><td>{{.Email}}</td><td>{{.Reason}}</td></tr>
{{end}}</table>
{{end}}

<p class="muted"><a href="/">Back to dashboard</a></p>
{{end}}`

// Page carries the fields every page shares. Embed it in page data structs.
type Page struct {
	Title string
	Flash *Flash
}

// DashboardData feeds the dashboard page.
type DashboardData struct {
	Page
	ActiveCount int
}

// SubscribeData feeds the subscribe form page.
type SubscribeData struct {
	Page
}

// UnsubscribeData feeds the opt-out confirmation page.
type UnsubscribeData struct {
	Page
	Found bool
}

// FailureRow is one failed delivery in the report table.
type FailureRow struct {
	Email  string
	Reason string
}

// ReportData feeds the post-dispatch report page.
type ReportData struct {
	Page
	Subject  string
	Mode     types.DispatchMode
	SentOK   []string
	SentFail []FailureRow
}

// Templates holds the parsed pages. Parsing happens once at startup; a
// malformed template aborts the process rather than a request.
type Templates struct {
	dashboard   *template.Template
	subscribe   *template.Template
	unsubscribe *template.Template
	report      *template.Template
}

// NewTemplates parses every page against the shared layout.
func NewTemplates() (*Templates, error) {
	t := &Templates{}

	pages := []struct {
		dst     **template.Template
		name    string
		content string
	}{
		{&t.dashboard, "dashboard", dashboardTpl},
		{&t.subscribe, "subscribe", subscribeTpl},
		{&t.unsubscribe, "unsubscribe", unsubscribeTpl},
		{&t.report, "report", reportTpl},
	}

	for _, p := range pages {
		tmpl, err := parsePage(p.name, p.content)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeInternalRender,
				"failed to parse page template "+p.name,
				err,
			)
		}
		*p.dst = tmpl
	}
	return t, nil
}

// parsePage combines the layout with one page's content block.
func parsePage(name, content string) (*template.Template, error) {
	tmpl, err := template.New(name).Parse(layoutTpl)
	if err != nil {
		return nil, err
	}
	return tmpl.Parse(content)
}

// Dashboard renders the dashboard page.
func (t *Templates) Dashboard(w http.ResponseWriter, data DashboardData) {
	render(w, t.dashboard, http.StatusOK, data)
}

// Subscribe renders the subscribe form page.
func (t *Templates) Subscribe(w http.ResponseWriter, data SubscribeData) {
	render(w, t.subscribe, http.StatusOK, data)
}

// Unsubscribe renders the opt-out confirmation page.
func (t *Templates) Unsubscribe(w http.ResponseWriter, data UnsubscribeData) {
	render(w, t.unsubscribe, http.StatusOK, data)
}

// Report renders the post-dispatch report page.
func (t *Templates) Report(w http.ResponseWriter, data ReportData) {
	render(w, t.report, http.StatusOK, data)
}

// render executes into a buffer first so a template failure produces a clean
// 500 instead of a half-written page.
func render(w http.ResponseWriter, tmpl *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
