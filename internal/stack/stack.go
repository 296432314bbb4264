package stack

import (
	"fmt"
	"path"
	"time"

	"github.com/imamik/nodeforge/internal/artifact"
	"github.com/imamik/nodeforge/internal/bootstrap"
	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/util/labels"
)

// Identity is the stack identity every node is keyed by.
type Identity struct {
	Name    string
	Account string
	Region  string
}

// IdentityFrom returns the identity cfg describes.
func IdentityFrom(cfg *config.Config) Identity {
	return Identity{Name: cfg.Stack, Account: cfg.Account, Region: cfg.Region}
}

func (id Identity) String() string {
	if id.Account == "" {
		return fmt.Sprintf("%s@%s", id.Name, id.Region)
	}
	return fmt.Sprintf("%s@%s/%s", id.Name, id.Account, id.Region)
}

// labels starts the label set for a node of this stack.
func (id Identity) labels(node string) *labels.LabelBuilder {
	return labels.NewLabelBuilder(id.Name).WithNode(node)
}

// Input is everything Build needs.
type Input struct {
	Identity Identity
	Config   *config.Config
	// Artifacts are the bootstrap artifacts in download order, see Artifacts.
	Artifacts *artifact.Set
	// SSHPublicKey backs the execution role's remote-session grant.
	SSHPublicKey []byte
	// NodeAccessKey is the ID of the object-storage key the instance signs
	// its downloads and log uploads with. The matching secret reaches the
	// server as bootstrap.SecretKeyPlaceholder.
	NodeAccessKey string
	// Timeouts bound the on-instance readiness check. Defaults apply when nil.
	Timeouts *config.Timeouts
	// Now places the build in a certificate renewal window. Defaults to the
	// current time.
	Now time.Time
}

// builder accumulates nodes in declaration order.
type builder struct {
	in  Input
	cfg *config.Config
	id  Identity
	g   *graph.Graph
	err error
}

func (b *builder) add(n *graph.Node) {
	if b.err != nil {
		return
	}
	if n.Region == "" {
		n.Region = b.id.Region
	}
	b.err = b.g.Add(n)
}

// Build declares the full deployment graph and validates it.
func Build(in Input) (*graph.Graph, error) {
	if in.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if in.Identity.Name == "" || in.Identity.Region == "" {
		return nil, fmt.Errorf("stack identity needs a name and a region")
	}
	if in.Artifacts == nil || in.Artifacts.Len() == 0 {
		return nil, fmt.Errorf("no bootstrap artifacts")
	}
	if len(in.SSHPublicKey) == 0 {
		return nil, fmt.Errorf("an SSH public key is required for the remote-session grant")
	}
	if in.NodeAccessKey == "" {
		return nil, fmt.Errorf("a node object-storage access key is required")
	}

	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	b := &builder{in: in, cfg: in.Config, id: in.Identity, g: graph.New()}
	b.network()
	b.identity()
	b.assets()
	if err := b.compute(); err != nil {
		return nil, err
	}
	b.observability()
	b.edge()
	b.dns()
	if b.err != nil {
		return nil, fmt.Errorf("failed to declare stack %s: %w", in.Identity, b.err)
	}

	if err := Validate(b.g, in.Config.Domain); err != nil {
		return nil, err
	}
	return b.g, nil
}

// Home returns the node user's home directory.
func Home(cfg *config.Config) string {
	return path.Join("/home", cfg.Node.User)
}

// Artifacts builds the bootstrap artifact set for cfg, wiring the log agent
// to the log groups Build declares.
func Artifacts(id Identity, cfg *config.Config) (*artifact.Set, error) {
	return artifact.Defaults(artifact.Options{
		Network:           cfg.Network,
		Home:              Home(cfg),
		InstallScriptFile: cfg.Assets.InstallScript,
		NodeConfigFile:    cfg.Assets.NodeConfig,
		LogStreams:        logStreams(id, cfg),
		LogsBucket:        cfg.Logs.Bucket,
		LogsEndpoint:      cfg.ContentStore.Endpoint,
		LogsRegion:        cfg.ContentStore.Region,
	})
}

// BootstrapScript renders the startup script for in without declaring the
// rest of the graph.
func BootstrapScript(in Input) (string, error) {
	seq, err := bootstrapSequence(in)
	if err != nil {
		return "", err
	}
	return seq.Render()
}

func bootstrapSequence(in Input) (*bootstrap.Sequence, error) {
	cfg := in.Config
	install, ok := in.Artifacts.Get(artifact.InstallScript)
	if !ok {
		return nil, fmt.Errorf("artifact %q is missing", artifact.InstallScript)
	}
	nodeCfg, ok := in.Artifacts.Get(artifact.NodeConfig)
	if !ok {
		return nil, fmt.Errorf("artifact %q is missing", artifact.NodeConfig)
	}
	agentCfg, ok := in.Artifacts.Get(artifact.AgentConfig)
	if !ok {
		return nil, fmt.Errorf("artifact %q is missing", artifact.AgentConfig)
	}

	fetch := func(a *artifact.Artifact) bootstrap.Fetch {
		loc := artifact.LocatorFor(cfg.ContentStore.Endpoint, cfg.ContentStore.Bucket, a)
		return bootstrap.Fetch{Name: a.Name, LocalPath: a.LocalPath, URL: loc.URL()}
	}

	bin := bootstrap.Input{
		Network:         cfg.Network,
		User:            cfg.Node.User,
		Home:            Home(cfg),
		Install:         fetch(install),
		NodeConfigPath:  nodeCfg.LocalPath,
		AgentConfigPath: agentCfg.LocalPath,
		Storage: bootstrap.StorageAccess{
			Region:    cfg.ContentStore.Region,
			AccessKey: in.NodeAccessKey,
			SecretKey: bootstrap.SecretKeyPlaceholder,
		},
	}
	for _, a := range in.Artifacts.Items() {
		if a.Name == artifact.InstallScript {
			continue
		}
		bin.Files = append(bin.Files, fetch(a))
	}
	if in.Timeouts != nil {
		bin.ClientReady = in.Timeouts.ClientReady
		bin.ClientReadyPoll = in.Timeouts.ClientReadyPoll
	}
	return bootstrap.Build(bin)
}
