package config

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/pkg/errors"
)

var configTemplate = template.Must(template.New("client").Parse(`# Milestone campaign client configuration

log_level = "{{ .LogLevel }}"
# plain or json
log_format = "{{ .LogFormat }}"
log_path = "{{ .LogPath }}"
# hex or PEM encoded secp256k1 key used to sign donations and votes
key_file = "{{ .KeyFile }}"

[ledger]
# devnet or ethereum
backend = "{{ .Ledger.Backend }}"
rpc_url = "{{ .Ledger.RPCURL }}"
contract = "{{ .Ledger.Contract }}"
chain_id = {{ .Ledger.ChainID }}

[client]
fetch_concurrency = {{ .Client.FetchConcurrency }}
confirm_timeout = "{{ .Client.ConfirmTimeout }}"
refresh_interval = "{{ .Client.RefreshInterval }}"
metrics_addr = "{{ .Client.MetricsAddr }}"

# genesis of the devnet ledger
[campaign]
threshold = {{ .Campaign.Threshold }}
committee = [{{ range $i, $member := .Campaign.Committee }}{{ if $i }}, {{ end }}"{{ $member }}"{{ end }}]
{{ range .Campaign.Milestones }}
[[campaign.milestones]]
description = {{ printf "%q" .Description }}
service_provider = "{{ .ServiceProvider }}"
target = "{{ .Target }}"
{{ end }}`))

// WriteConfigFile renders cfg as toml into file.
func WriteConfigFile(file string, cfg *Config) error {
	var buffer bytes.Buffer
	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return errors.Wrap(err, "render config")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	return os.WriteFile(file, buffer.Bytes(), 0644)
}
