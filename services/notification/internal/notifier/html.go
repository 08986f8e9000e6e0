package notifier

import (
	"bytes"
	"html/template"
)

var htmlWrapper = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #2c3e50; color: white; padding: 20px; text-align: center; }
.content { background: #f9f9f9; padding: 20px; border: 1px solid #ddd; }
.footer { text-align: center; padding: 20px; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h2>{{.Subject}}</h2></div>
<div class="content"><pre style="white-space: pre-wrap; font-family: Arial, sans-serif;">{{.Body}}</pre></div>
<div class="footer"><p>This is an automated message. Please do not reply.</p></div>
</div>
</body>
</html>
`))

// WrapHTML renders a plain text body inside the HTML mail layout. The body
// is escaped.
func WrapHTML(subject, body string) (string, error) {
	var buf bytes.Buffer
	if err := htmlWrapper.Execute(&buf, struct{ Subject, Body string }{subject, body}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
