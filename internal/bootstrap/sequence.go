package bootstrap

import (
	"fmt"
	"path"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// Fixed on-instance locations.
const (
	DefaultMarkerPath    = "/var/lib/nodeforge/bootstrapped"
	DefaultJWTSecretPath = "/etc/jwt/jwt-secret"
	DefaultStorageEnv    = "/etc/nodeforge/storage.env"
	ExecutionRPCURL      = "http://localhost:8545"
	ExecutionAuthURL     = "http://localhost:8551"
)

// Client binary names.
const (
	ExecutionClient = "geth"
	ConsensusClient = "lighthouse"
)

// Environment names of the object-storage key pair on the instance.
const (
	AccessKeyEnv = "NODEFORGE_STORAGE_ACCESS_KEY"
	SecretKeyEnv = "NODEFORGE_STORAGE_SECRET_KEY"
)

// SecretKeyPlaceholder stands in for the storage secret in a rendered
// script. The provider swaps it for the real value when it hands the
// script to a server, so the secret never reaches state or plan output.
const SecretKeyPlaceholder = "@@" + SecretKeyEnv + "@@"

// Substitutions maps SecretKeyPlaceholder to the shell-quoted secret.
func Substitutions(secretKey string) map[string]string {
	return map[string]string{SecretKeyPlaceholder: shellescape.Quote(secretKey)}
}

// StorageAccess is the key pair the instance signs content store requests
// with.
type StorageAccess struct {
	// Region is the SigV4 signing region of the content store.
	Region    string
	AccessKey string
	// SecretKey is usually SecretKeyPlaceholder.
	SecretKey string
	// EnvPath is the root-only file the pair is kept in.
	EnvPath string
}

// Fetch is one file the instance downloads.
type Fetch struct {
	Name      string
	LocalPath string
	URL       string
}

// Input is everything the sequencer needs to build the startup script.
type Input struct {
	Network string
	User    string
	Home    string

	// Storage signs every download and the agent's log uploads.
	Storage StorageAccess

	// Install is downloaded and executed before anything else.
	Install Fetch
	// Files are downloaded in order after the install script ran.
	Files []Fetch

	NodeConfigPath  string
	AgentConfigPath string

	MarkerPath    string
	JWTSecretPath string

	ClientReady     time.Duration
	ClientReadyPoll time.Duration
}

func (in *Input) applyDefaults() {
	if in.MarkerPath == "" {
		in.MarkerPath = DefaultMarkerPath
	}
	if in.JWTSecretPath == "" {
		in.JWTSecretPath = DefaultJWTSecretPath
	}
	if in.Storage.EnvPath == "" {
		in.Storage.EnvPath = DefaultStorageEnv
	}
	if in.ClientReady == 0 {
		in.ClientReady = 5 * time.Minute
	}
	if in.ClientReadyPoll == 0 {
		in.ClientReadyPoll = 5 * time.Second
	}
}

func (in *Input) validate() error {
	switch {
	case in.Network == "":
		return fmt.Errorf("network is required")
	case in.User == "" || in.User == "root":
		return fmt.Errorf("a non-root user is required")
	case !path.IsAbs(in.Home):
		return fmt.Errorf("home %q must be absolute", in.Home)
	case in.Storage.Region == "" || in.Storage.AccessKey == "" || in.Storage.SecretKey == "":
		return fmt.Errorf("storage access needs a region and a key pair")
	case !path.IsAbs(in.Storage.EnvPath):
		return fmt.Errorf("storage env file %q must be absolute", in.Storage.EnvPath)
	case in.Install.URL == "" || !path.IsAbs(in.Install.LocalPath):
		return fmt.Errorf("install script needs a URL and an absolute path")
	case in.NodeConfigPath == "":
		return fmt.Errorf("node config path is required")
	case in.AgentConfigPath == "":
		return fmt.Errorf("agent config path is required")
	case in.ClientReadyPoll > in.ClientReady:
		return fmt.Errorf("readiness poll interval %s exceeds readiness timeout %s", in.ClientReadyPoll, in.ClientReady)
	}
	for _, f := range in.Files {
		if f.URL == "" || !path.IsAbs(f.LocalPath) {
			return fmt.Errorf("download %q needs a URL and an absolute path", f.Name)
		}
	}
	return nil
}

// LogPath returns the file a client appends the given stream to.
func LogPath(home, client, stream string) string {
	return path.Join(home, client+"."+stream+".log")
}

// Sequence is the ordered list of startup directives.
type Sequence struct {
	Directives []Directive
}

// Build returns the validated startup sequence for in.
func Build(in Input) (*Sequence, error) {
	in.applyDefaults()
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("invalid bootstrap input: %w", err)
	}

	var seq Sequence
	seq.add(guard(in.MarkerPath))
	seq.add(storageCredentials(in.Storage))
	seq.add(download(StageInstall, in.Install, in.Storage))
	seq.add(Directive{
		Stage:    StageInstall,
		Name:     "run " + in.Install.Name,
		Command:  fmt.Sprintf("NODE_USER=%s bash %s", shellescape.Quote(in.User), shellescape.Quote(in.Install.LocalPath)),
		Consumes: []string{in.Install.LocalPath},
	})
	for _, f := range in.Files {
		d := download(StageDownload, f, in.Storage)
		if isUnder(f.LocalPath, in.Home) {
			d.Command += fmt.Sprintf("\nchown %s:%s %s", shellescape.Quote(in.User), shellescape.Quote(in.User), shellescape.Quote(f.LocalPath))
		}
		seq.add(d)
	}
	seq.add(agent(in.AgentConfigPath, in.Storage.EnvPath))
	seq.add(jwtSecret(in.JWTSecretPath, in.User))
	seq.add(execution(in))
	seq.add(readiness(in.ClientReady, in.ClientReadyPoll))
	seq.add(consensus(in))

	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

func (s *Sequence) add(d Directive) {
	s.Directives = append(s.Directives, d)
}

// Validate checks that every consumed path was produced earlier, that stages
// never go backwards and that the consensus client starts only after the
// execution client started and answered the readiness check.
func (s *Sequence) Validate() error {
	if len(s.Directives) == 0 || s.Directives[0].Stage != StageGuard {
		return &OrderError{Directive: "guard", Reason: "the run-once guard must be the first directive"}
	}

	produced := make(map[string]bool)
	positions := make(map[Stage]int)
	last := StageGuard
	for i, d := range s.Directives {
		if d.Stage < last {
			return &OrderError{Directive: d.Name, Reason: fmt.Sprintf("stage %s follows stage %s", d.Stage, last)}
		}
		last = d.Stage
		for _, p := range d.Consumes {
			if !produced[p] {
				return &OrderError{Directive: d.Name, Reason: fmt.Sprintf("consumes %s before any directive produced it", p)}
			}
		}
		for _, p := range d.Produces {
			produced[p] = true
		}
		switch d.Stage {
		case StageExecution, StageReadiness, StageConsensus:
			if _, dup := positions[d.Stage]; dup {
				return &OrderError{Directive: d.Name, Reason: fmt.Sprintf("more than one %s directive", d.Stage)}
			}
			positions[d.Stage] = i
		}
	}

	exec, hasExec := positions[StageExecution]
	ready, hasReady := positions[StageReadiness]
	cons, hasCons := positions[StageConsensus]
	switch {
	case !hasExec:
		return &OrderError{Directive: "start " + ExecutionClient, Reason: "execution client is never started"}
	case !hasCons:
		return &OrderError{Directive: "start " + ConsensusClient, Reason: "consensus client is never started"}
	case !hasReady:
		return &OrderError{Directive: "readiness", Reason: "no readiness check between the clients"}
	case !(exec < ready && ready < cons):
		return &OrderError{Directive: "start " + ConsensusClient, Reason: "must follow the execution start and the readiness check"}
	}
	return nil
}

// Downloads returns the directives that fetch files, in order.
func (s *Sequence) Downloads() []Directive {
	var out []Directive
	for _, d := range s.Directives {
		if strings.HasPrefix(d.Name, "download ") {
			out = append(out, d)
		}
	}
	return out
}

func isUnder(p, dir string) bool {
	rel := strings.TrimPrefix(path.Clean(p), path.Clean(dir)+"/")
	return rel != path.Clean(p)
}
