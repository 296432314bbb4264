package bootstrap

import (
	"bytes"
	"fmt"
	"text/template"
)

var scriptTemplate = template.Must(template.New("startup").Parse(`#!/bin/bash
set -euo pipefail

log() { echo "[nodeforge] $*" >&2; }
{{ range $i, $d := .Directives }}
# {{ $i }}. {{ $d.Stage }}: {{ $d.Name }}
log {{ printf "%q" $d.Name }}
{{ $d.Command }}
{{ end }}
log "bootstrap complete"
`))

// Render returns the startup script. The sequence is validated first.
func (s *Sequence) Render() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("failed to render startup script: %w", err)
	}
	return buf.String(), nil
}
