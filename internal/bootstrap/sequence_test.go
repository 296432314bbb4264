package bootstrap

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput() Input {
	return Input{
		Network: "sepolia",
		User:    "node",
		Home:    "/home/node",
		Storage: StorageAccess{Region: "fsn1", AccessKey: "NODEKEY", SecretKey: SecretKeyPlaceholder},
		Install: Fetch{Name: "install-script", LocalPath: "/opt/nodeforge/install.sh", URL: "https://s3.example/b/assets/sha256/aaa"},
		Files: []Fetch{
			{Name: "node-config", LocalPath: "/home/node/sepolia.ini", URL: "https://s3.example/b/assets/sha256/bbb"},
			{Name: "agent-config", LocalPath: "/etc/vector/vector.yaml", URL: "https://s3.example/b/assets/sha256/ccc"},
		},
		NodeConfigPath:  "/home/node/sepolia.ini",
		AgentConfigPath: "/etc/vector/vector.yaml",
	}
}

func stagesOf(seq *Sequence) []Stage {
	var out []Stage
	for _, d := range seq.Directives {
		out = append(out, d.Stage)
	}
	return out
}

func TestBuild_StageOrder(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageGuard,
		StageCredentials,
		StageInstall, StageInstall,
		StageDownload, StageDownload,
		StageAgent,
		StageSecret,
		StageExecution,
		StageReadiness,
		StageConsensus,
	}, stagesOf(seq))
}

func TestBuild_DownloadsPrecedeConsumers(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	producedAt := map[string]int{}
	for i, d := range seq.Directives {
		for _, p := range d.Produces {
			producedAt[p] = i
		}
		for _, p := range d.Consumes {
			at, ok := producedAt[p]
			require.True(t, ok, "%s consumed by %q before it was produced", p, d.Name)
			assert.Less(t, at, i)
		}
	}
}

func TestBuild_Commands(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	byName := map[string]Directive{}
	for _, d := range seq.Directives {
		byName[d.Name] = d
	}

	exec := byName["start geth"].Command
	assert.Equal(t,
		"runuser -l node -c 'cd /home/node && geth --sepolia --config /home/node/sepolia.ini --http --authrpc.jwtsecret /etc/jwt/jwt-secret 2>> /home/node/geth.stderr.log 1>> /home/node/geth.stdout.log &'",
		exec)

	cons := byName["start lighthouse"].Command
	assert.Equal(t,
		"runuser -l node -c 'cd /home/node && lighthouse bn --network sepolia --jwt-secrets /etc/jwt/jwt-secret --execution-endpoints http://localhost:8551 --eth1-endpoints http://localhost:8545 --eth1 2>> /home/node/lighthouse.stderr.log 1>> /home/node/lighthouse.stdout.log &'",
		cons)

	nodeCfg := byName["download node-config"].Command
	assert.Contains(t, nodeCfg,
		`curl -fsSL --retry 5 --aws-sigv4 aws:amz:fsn1:s3 --user "${NODEFORGE_STORAGE_ACCESS_KEY}:${NODEFORGE_STORAGE_SECRET_KEY}" -o /home/node/sepolia.ini https://s3.example/b/assets/sha256/bbb`)
	assert.Contains(t, nodeCfg, "chown node:node /home/node/sepolia.ini")
	assert.NotContains(t, byName["download agent-config"].Command, "chown")

	assert.Contains(t, byName["run install-script"].Command, "NODE_USER=node bash /opt/nodeforge/install.sh")
	assert.Contains(t, byName["shared secret"].Command, "openssl rand -hex 32")
}

func TestBuild_DownloadsAreSigned(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	downloads := seq.Downloads()
	require.Len(t, downloads, 3)
	for _, d := range downloads {
		assert.Contains(t, d.Command, "--aws-sigv4 aws:amz:fsn1:s3", d.Name)
		assert.Contains(t, d.Command, `--user "${NODEFORGE_STORAGE_ACCESS_KEY}:${NODEFORGE_STORAGE_SECRET_KEY}"`, d.Name)
		assert.Equal(t, []string{DefaultStorageEnv}, d.Consumes, d.Name)
	}
}

func TestBuild_StorageCredentials(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	creds := seq.Directives[1]
	assert.Equal(t, StageCredentials, creds.Stage)
	assert.Equal(t, []string{DefaultStorageEnv}, creds.Produces)
	assert.Contains(t, creds.Command, "(umask 077 && printf '%s=%q\\n' NODEFORGE_STORAGE_ACCESS_KEY NODEKEY NODEFORGE_STORAGE_SECRET_KEY @@NODEFORGE_STORAGE_SECRET_KEY@@ > /etc/nodeforge/storage.env)")
	assert.Contains(t, creds.Command, "chmod 0600 /etc/nodeforge/storage.env")
	assert.Contains(t, creds.Command, "set -a\n. /etc/nodeforge/storage.env\nset +a")

	var agent Directive
	for _, d := range seq.Directives {
		if d.Stage == StageAgent {
			agent = d
		}
	}
	assert.Contains(t, agent.Consumes, DefaultStorageEnv)
}

func TestBuild_LiteralSecretIsQuoted(t *testing.T) {
	in := testInput()
	in.Storage.SecretKey = "se cret"

	seq, err := Build(in)
	require.NoError(t, err)
	assert.Contains(t, seq.Directives[1].Command, "NODEFORGE_STORAGE_SECRET_KEY 'se cret' >")
}

func TestSubstitutions(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)
	script, err := seq.Render()
	require.NoError(t, err)

	for placeholder, value := range Substitutions("a/b+c$d") {
		script = strings.ReplaceAll(script, placeholder, value)
	}
	assert.NotContains(t, script, SecretKeyPlaceholder)
	assert.Contains(t, script, `NODEFORGE_STORAGE_SECRET_KEY 'a/b+c$d' >`)
}

func TestBuild_JWTSecretOwnedByUser(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	var secret Directive
	for _, d := range seq.Directives {
		if d.Stage == StageSecret {
			secret = d
		}
	}
	assert.Contains(t, secret.Command, "chown node:node /etc/jwt/jwt-secret")
	assert.Contains(t, secret.Command, "chmod 0600 /etc/jwt/jwt-secret")
	assert.NotContains(t, secret.Command, "0644")
}

func TestBuild_GuardReleasedOnFailure(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	assert.Contains(t, seq.Directives[0].Command,
		`trap 'rc=$?; [ "$rc" -eq 0 ] || rm -f /var/lib/nodeforge/bootstrapped' EXIT`)
}

func TestBuild_ReadinessIsBounded(t *testing.T) {
	in := testInput()
	in.ClientReady = 90 * time.Second
	in.ClientReadyPoll = 3 * time.Second

	seq, err := Build(in)
	require.NoError(t, err)

	var ready Directive
	for _, d := range seq.Directives {
		if d.Stage == StageReadiness {
			ready = d
		}
	}
	assert.Contains(t, ready.Command, "deadline=$((SECONDS + 90))")
	assert.Contains(t, ready.Command, "sleep 3")
	assert.Contains(t, ready.Command, "web3_clientVersion")
	assert.Contains(t, ready.Command, "http://localhost:8545")
	assert.Contains(t, ready.Command, "exit 1")
}

func TestBuild_IdenticalContentStillDownloadedPerPath(t *testing.T) {
	in := testInput()
	shared := "https://s3.example/b/assets/sha256/same"
	in.Files = []Fetch{
		{Name: "node-config", LocalPath: "/home/node/sepolia.ini", URL: shared},
		{Name: "node-config-copy", LocalPath: "/home/node/copy.ini", URL: shared},
		{Name: "agent-config", LocalPath: "/etc/vector/vector.yaml", URL: "https://s3.example/b/assets/sha256/ccc"},
	}

	seq, err := Build(in)
	require.NoError(t, err)

	var sharedDownloads int
	for _, d := range seq.Downloads() {
		if strings.Contains(d.Command, shared) {
			sharedDownloads++
		}
	}
	assert.Equal(t, 2, sharedDownloads)
}

func TestBuild_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{name: "no network", mutate: func(in *Input) { in.Network = "" }},
		{name: "root user", mutate: func(in *Input) { in.User = "root" }},
		{name: "relative home", mutate: func(in *Input) { in.Home = "home/node" }},
		{name: "install without url", mutate: func(in *Input) { in.Install.URL = "" }},
		{name: "no storage access key", mutate: func(in *Input) { in.Storage.AccessKey = "" }},
		{name: "no storage region", mutate: func(in *Input) { in.Storage.Region = "" }},
		{name: "relative storage env", mutate: func(in *Input) { in.Storage.EnvPath = "storage.env" }},
		{name: "download with relative path", mutate: func(in *Input) { in.Files[0].LocalPath = "sepolia.ini" }},
		{name: "poll longer than timeout", mutate: func(in *Input) { in.ClientReady = time.Second; in.ClientReadyPoll = time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInput()
			tt.mutate(&in)
			_, err := Build(in)
			assert.Error(t, err)
		})
	}
}

func TestBuild_MissingNodeConfigDownload(t *testing.T) {
	in := testInput()
	in.Files = in.Files[1:]

	_, err := Build(in)
	require.Error(t, err)
	var orderErr *OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "start geth", orderErr.Directive)
	assert.Contains(t, orderErr.Reason, "/home/node/sepolia.ini")
}

func TestValidate_RejectsReorderedSequences(t *testing.T) {
	base, err := Build(testInput())
	require.NoError(t, err)

	indexOf := func(seq *Sequence, stage Stage) int {
		for i, d := range seq.Directives {
			if d.Stage == stage {
				return i
			}
		}
		return -1
	}
	clone := func() *Sequence {
		return &Sequence{Directives: append([]Directive(nil), base.Directives...)}
	}

	t.Run("consensus before execution", func(t *testing.T) {
		seq := clone()
		e, c := indexOf(seq, StageExecution), indexOf(seq, StageConsensus)
		seq.Directives[e], seq.Directives[c] = seq.Directives[c], seq.Directives[e]
		assert.Error(t, seq.Validate())
	})

	t.Run("readiness check removed", func(t *testing.T) {
		seq := clone()
		r := indexOf(seq, StageReadiness)
		seq.Directives = append(seq.Directives[:r], seq.Directives[r+1:]...)
		err := seq.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "readiness")
	})

	t.Run("guard not first", func(t *testing.T) {
		seq := clone()
		seq.Directives = seq.Directives[1:]
		assert.Error(t, seq.Validate())
	})

	t.Run("duplicate execution start", func(t *testing.T) {
		seq := clone()
		e := indexOf(seq, StageExecution)
		extra := append([]Directive(nil), seq.Directives[:e+1]...)
		extra = append(extra, seq.Directives[e])
		seq.Directives = append(extra, seq.Directives[e+1:]...)
		assert.Error(t, seq.Validate())
	})
}

func TestRender(t *testing.T) {
	seq, err := Build(testInput())
	require.NoError(t, err)

	script, err := seq.Render()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\nset -euo pipefail\n"))

	guardAt := strings.Index(script, "if [ -e /var/lib/nodeforge/bootstrapped ]; then")
	claimAt := strings.Index(script, "> /var/lib/nodeforge/bootstrapped")
	gethAt := strings.Index(script, "geth --sepolia")
	readyAt := strings.Index(script, "web3_clientVersion")
	lighthouseAt := strings.Index(script, "lighthouse bn")
	for _, at := range []int{guardAt, claimAt, gethAt, readyAt, lighthouseAt} {
		require.GreaterOrEqual(t, at, 0)
	}
	assert.Less(t, guardAt, claimAt)
	assert.Less(t, claimAt, strings.Index(script, "--aws-sigv4"))
	assert.Less(t, claimAt, gethAt)
	assert.Less(t, gethAt, readyAt)
	assert.Less(t, readyAt, lighthouseAt)
	assert.NotContains(t, script, "sleep 10")
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, "/home/node/geth.stdout.log", LogPath("/home/node", ExecutionClient, "stdout"))
	assert.Equal(t, "/home/node/lighthouse.stderr.log", LogPath("/home/node/", ConsensusClient, "stderr"))
}
