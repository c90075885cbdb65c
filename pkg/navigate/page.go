package navigate

import (
	"bytes"
	"html/template"
)

var notFoundTmpl = template.Must(template.New("notfound").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Domain Not Found</title></head>
<body style="font-family: Inter, sans-serif; background: #0a0f1e; color: #fff; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0;">
<div style="text-align: center;">
<h1>Domain Not Found</h1>
<p>The .asn domain "{{.}}" could not be resolved.</p>
</div>
</body>
</html>
`))

// NotFoundPage renders the page shown for an unresolvable pseudo-domain.
// The address is HTML-escaped.
func NotFoundPage(address string) []byte {
	var buf bytes.Buffer
	// Executing a parsed template into a buffer only fails on template bugs.
	_ = notFoundTmpl.Execute(&buf, address)
	return buf.Bytes()
}
