package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
)

// printCSS styles the harvested fragments for A4 output. %s is the page margin.
const printCSS = `@page { size: A4; margin: %s; }
body { font-family: 'Segoe UI', Tahoma, sans-serif; font-size: 8.5pt; line-height: 1.15; color: #111; }
.chapter-header { background: #1a252f; color: white; padding: 8px; margin: 15px 0 10px 0; font-size: 13pt; text-align: center; font-weight: bold; border-radius: 4px; page-break-before: always; }
.chapter-header:first-child { page-break-before: avoid; }
.topic-header { color: #a00; border-bottom: 1.5px solid #a00; margin: 12px 0 4px 0; font-size: 10pt; font-weight: bold; text-transform: uppercase; }
.question { font-weight: bold; display: block; margin-top: 10px; font-size: 9.2pt; }
.option { margin-left: 20px; display: block; font-size: 8.8pt; color: #333; }
.ans-block { margin-top: 4px; padding: 5px 12px; background: #f6fff6; border-left: 4px solid #27ae60; font-size: 8.5pt; page-break-inside: avoid; }
.ans-label { color: #27ae60; font-weight: bold; }
.diagram-scaled {
    max-width: 90%%;
    min-width: 420px;
    min-height: 150px;
    height: auto;
    display: block;
    margin: 12px auto;
    border: 1px solid #eee;
    padding: 10px;
    background: #fff;
}
.math-inline { display: inline-block; height: 1.6em; vertical-align: middle; margin: 0 2px; }
.standing-img { width: 100%%; text-align: center; }
sub, sup { font-size: 70%%; line-height: 0; }
`

var shell = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Stylesheet returns the print stylesheet for the given page margin in millimetres
func Stylesheet(marginMM float64) string {
	return fmt.Sprintf(printCSS, strconv.FormatFloat(marginMM, 'f', -1, 64)+"mm")
}

// BuildDocument wraps the accumulated fragment HTML in a printable page
func BuildDocument(title, body string, marginMM float64) (string, error) {
	var buf bytes.Buffer
	err := shell.Execute(&buf, struct {
		Title string
		CSS   template.CSS
		Body  template.HTML
	}{
		Title: title,
		CSS:   template.CSS(Stylesheet(marginMM)),
		Body:  template.HTML(body),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
