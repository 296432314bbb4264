package artifact

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path"
	"text/template"
)

//go:embed defaults/*
var defaultsFS embed.FS

// Well-known artifact names.
const (
	InstallScript = "install-script"
	NodeConfig    = "node-config"
	AgentConfig   = "agent-config"
)

// AgentConfigPath is where the log and metrics agent reads its configuration.
const AgentConfigPath = "/etc/vector/vector.yaml"

// InstallScriptPath is where the install script is written before it runs.
const InstallScriptPath = "/opt/nodeforge/install.sh"

var networkIDs = map[string]uint64{
	"mainnet": 1,
	"holesky": 17000,
	"sepolia": 11155111,
	"hoodi":   560048,
}

// LogStream is one client output stream the agent ships.
type LogStream struct {
	// Name is the log group the stream is archived under.
	Name string
	// Source is the agent's identifier for the stream.
	Source string
	// Path is the file the client appends to.
	Path string
}

// Options selects and parameterizes the default artifact set.
type Options struct {
	Network string
	// Home is the node user's home directory.
	Home string
	// InstallScriptFile and NodeConfigFile replace the built-in content
	// when set.
	InstallScriptFile string
	NodeConfigFile    string

	LogStreams   []LogStream
	LogsBucket   string
	LogsEndpoint string
	LogsRegion   string
}

// NodeConfigPath returns where the execution client config is written.
func (o Options) NodeConfigPath() string {
	return path.Join(o.Home, o.Network+".ini")
}

// Defaults builds the install script, node configuration and agent
// configuration in the order the instance downloads them.
func Defaults(opts Options) (*Set, error) {
	id, ok := networkIDs[opts.Network]
	if !ok {
		return nil, fmt.Errorf("no network id known for %q", opts.Network)
	}
	if opts.Home == "" {
		return nil, fmt.Errorf("home directory is required")
	}

	install, err := loadOrDefault(opts.InstallScriptFile, "defaults/install.sh", nil)
	if err != nil {
		return nil, err
	}
	nodeCfg, err := loadOrDefault(opts.NodeConfigFile, "defaults/node.ini.tmpl", map[string]any{"NetworkID": id})
	if err != nil {
		return nil, err
	}
	agentCfg, err := renderEmbedded("defaults/vector.yaml.tmpl", map[string]any{
		"LogGroups": opts.LogStreams,
		"Bucket":    opts.LogsBucket,
		"Endpoint":  opts.LogsEndpoint,
		"Region":    opts.LogsRegion,
	})
	if err != nil {
		return nil, err
	}

	set := NewSet()
	for _, spec := range []struct {
		name, path string
		content    []byte
	}{
		{InstallScript, InstallScriptPath, install},
		{NodeConfig, opts.NodeConfigPath(), nodeCfg},
		{AgentConfig, AgentConfigPath, agentCfg},
	} {
		a, err := New(spec.name, spec.path, spec.content)
		if err != nil {
			return nil, err
		}
		if err := set.Add(a); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// loadOrDefault reads override when set. Otherwise it renders the embedded
// file with data, or returns it verbatim when data is nil.
func loadOrDefault(override, embedded string, data any) ([]byte, error) {
	if override != "" {
		// #nosec G304
		content, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s: %w", override, err)
		}
		return content, nil
	}
	if data == nil {
		return defaultsFS.ReadFile(embedded)
	}
	return renderEmbedded(embedded, data)
}

func renderEmbedded(name string, data any) ([]byte, error) {
	raw, err := defaultsFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded %s: %w", name, err)
	}
	tmpl, err := template.New(path.Base(name)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
