package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const breakerOpenedTemplate = `[Breaker Tripped]
Breaker: {{.BreakerID}}
Relay: {{.RelayID}}
Fault: {{printf "%.0f" .FaultCurrentA}}A {{.FaultType}}
Element: {{.Element}}
Clearing Time: {{printf "%.3f" .ClearingTimeS}}s
Time: {{.OccurredAt.Format "2006-01-02T15:04:05Z07:00"}}`

const diagnosticTemplate = `[Protection Diagnostic]
Code: {{.Code}}
Device: {{.Device}}
Detail: {{.Message}}
Time: {{.OccurredAt.Format "2006-01-02T15:04:05Z07:00"}}`

// Templates renders notification content for study events.
type Templates struct {
	breaker    *template.Template
	diagnostic *template.Template
}

// NewTemplates parses the notification templates. Empty strings select the
// defaults.
func NewTemplates(breaker, diagnostic string) (*Templates, error) {
	if breaker == "" {
		breaker = breakerOpenedTemplate
	}
	if diagnostic == "" {
		diagnostic = diagnosticTemplate
	}
	breakerTpl, err := template.New("breaker-opened").Parse(breaker)
	if err != nil {
		return nil, err
	}
	diagnosticTpl, err := template.New("diagnostic-raised").Parse(diagnostic)
	if err != nil {
		return nil, err
	}
	return &Templates{breaker: breakerTpl, diagnostic: diagnosticTpl}, nil
}

func (t *Templates) render(tpl *template.Template, data any) (string, error) {
	if t == nil || tpl == nil {
		return "", errors.New("notify template: nil")
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
