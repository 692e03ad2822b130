package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

const confirmationSubject = "Registration received"

//go:embed templates/*.html
var templateFS embed.FS

var confirmationTmpl = template.Must(template.ParseFS(templateFS, "templates/confirmation.html"))

// RenderConfirmation returns the subject and HTML body of the confirmation
// email. Values are HTML-escaped.
func RenderConfirmation(name, imageURL string) (subject, body string, err error) {
	var buf bytes.Buffer
	data := struct {
		Name     string
		ImageURL string
	}{name, imageURL}

	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render confirmation: %w", err)
	}
	return confirmationSubject, buf.String(), nil
}
