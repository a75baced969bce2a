package usecase

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/xavierca1/leadforge/internal/entity"
)

// templateData is what subject and body templates can reference.
type templateData struct {
	FirstName   string
	LastName    string
	FullName    string
	Title       string
	Company     string
	Industry    string
	Location    string
	CompanySize string
}

func newTemplateData(l *entity.Lead) templateData {
	return templateData{
		FirstName:   l.FirstName,
		LastName:    l.LastName,
		FullName:    l.FullName(),
		Title:       l.Title,
		Company:     l.Company,
		Industry:    l.Industry,
		Location:    l.Location,
		CompanySize: l.CompanySize,
	}
}

func checkTemplateSyntax(src string) error {
	if _, err := template.New("check").Option("missingkey=error").Parse(src); err != nil {
		return fmt.Errorf("invalid template: %v", err)
	}
	return nil
}

// renderEmail renders a template's subject and body for one lead.
func renderEmail(t *entity.EmailTemplate, l *entity.Lead) (string, string, error) {
	data := newTemplateData(l)
	subject, err := renderText("subject", t.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := renderText("body", t.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderText(name, src string, data templateData) (string, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
