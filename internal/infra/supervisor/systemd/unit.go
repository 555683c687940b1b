package systemd

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"ops-agent/internal/domain/model"
)

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{ .Name }} (managed by ops-agent)
After=network-online.target
Wants=network-online.target
StartLimitIntervalSec=0

[Service]
Type=simple
WorkingDirectory={{ .WorkingDir }}
EnvironmentFile=-{{ .EnvFile }}
ExecStart=/bin/sh -c "{{ .ExecStart }}"
Restart=always
RestartSec={{ .RestartSec }}

[Install]
WantedBy=multi-user.target
`))

type unitData struct {
	Name       string
	WorkingDir string
	EnvFile    string
	ExecStart  string
	RestartSec int
}

// renderUnit returns the unit file for u.
func renderUnit(u model.ServiceUnit, envFile string) ([]byte, error) {
	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, unitData{
		Name:       u.Name,
		WorkingDir: u.WorkingDir,
		EnvFile:    envFile,
		ExecStart:  escapeExec(u.StartCommand),
		RestartSec: u.RestartSec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render unit %s: %w", u.Name, err)
	}
	return buf.Bytes(), nil
}

// escapeExec quotes cmd for a double-quoted ExecStart argument. systemd
// expands % specifiers and $ variables itself, so both are doubled.
var execEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"%", "%%",
	"$", "$$",
	"\n", " ",
)

func escapeExec(cmd string) string {
	return execEscaper.Replace(cmd)
}
