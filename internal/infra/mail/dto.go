package mail

import (
	"html/template"
	"strings"
)

// htmlData feeds the HTML alternative of every outgoing message.
type htmlData struct {
	Paragraphs []string
	PixelURL   string
}

var htmlTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html><body>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .PixelURL}}<img src="{{.PixelURL}}" width="1" height="1" alt="" style="display:none">
{{end}}</body></html>`))

func newHTMLData(body, pixelURL string) htmlData {
	var paragraphs []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return htmlData{Paragraphs: paragraphs, PixelURL: pixelURL}
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	dialer   Dialer
}
