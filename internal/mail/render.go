package mail

import (
	"bytes"
	"html/template"
	"time"

	"mailblast/internal/types"
)

// TemplateData carries the per-recipient values substituted into the
// promotional wrapper.
type TemplateData struct {
	Subject string
	// BodyHTML is the operator-authored fragment. It is trusted input from
	// the compose form and is injected without escaping.
	BodyHTML template.HTML
	// ImageSrc is the hero image reference: a cid: URI when the image was
	// inlined, the original external URL when inlining degraded, empty when
	// the batch has no image. Typed as template.URL because html/template
	// would otherwise reject the cid: scheme.
	ImageSrc       template.URL
	UnsubscribeURL string
}

// Renderer fills the promotional HTML wrapper. The template is parsed once at
// construction; Render is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the built-in promotional template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("promo").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(promoTpl)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRender, "promotional template failed to parse", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render produces the complete HTML document for one recipient.
func (r *Renderer) Render(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalRender, "promotional template failed to render", err)
	}
	return buf.String(), nil
}

const promoTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
  <title>{{.Subject}}</title>
</head>
<body style="background-color:#f4f4f7;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;background-color:#fff;border-radius:.375rem;box-shadow:0 4px 6px -1px rgb(0 0 0 / .1),0 2px 4px -2px rgb(0 0 0 / .1);margin:40px auto;padding:20px;width:550px;overflow:hidden">
    <tbody>
      <tr><td>
        {{if .ImageSrc}}
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin-top:16px">
          <tbody><tr><td>
            <img src="{{.ImageSrc}}" alt="" style="display:block;outline:none;border:none;text-decoration:none;margin:0 auto;max-width:100%;border-radius:.375rem" />
          </td></tr></tbody>
        </table>
        {{end}}
        <div style="font-size:14px;line-height:24px;margin:24px 8px;color:#333">{{.BodyHTML}}</div>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:12px;line-height:20px;margin:16px 8px;text-align:center;color:rgb(156,163,175)">
          You are receiving this because you subscribed to our mailing list.<br />
          <a href="{{.UnsubscribeURL}}" target="_blank" style="color:rgb(107,114,128);text-decoration:underline">Unsubscribe</a>
          &nbsp;&middot;&nbsp;&copy;{{year}}
        </p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`
