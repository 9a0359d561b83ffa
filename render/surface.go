// Package render turns an effective report into HTML and captures it as an image.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"report-composer-go/models"
)

// ReportElement is the CSS selector of the report area inside the rendered page.
const ReportElement = "#report"

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html"))

// HTML renders fields as a standalone report page.
func HTML(fields models.ReportFields) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, fields); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Surface is the one report area every student is drawn into in turn.
// Show replaces what is drawn; Capture snapshots whatever is drawn at that moment.
type Surface interface {
	Show(ctx context.Context, page []byte) error
	Capture(ctx context.Context) ([]byte, error)
}
