package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ComputesDigest(t *testing.T) {
	a, err := New("install", "/opt/install.sh", []byte("echo hi\n"))
	require.NoError(t, err)

	assert.Equal(t, digest.FromString("echo hi\n"), a.Digest)
	assert.Equal(t, "assets/sha256/"+a.Digest.Encoded(), a.Key())
	assert.Len(t, a.ShortDigest(), 12)
	assert.NoError(t, a.Verify())
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "/x", []byte("a"))
	assert.Error(t, err)
	_, err = New("a", "relative/x", []byte("a"))
	assert.Error(t, err)
	_, err = New("a", "/x", nil)
	assert.Error(t, err)
}

func TestSameContentSameLocator(t *testing.T) {
	a, err := New("first", "/etc/a.conf", []byte("shared"))
	require.NoError(t, err)
	b, err := New("second", "/etc/b.conf", []byte("shared"))
	require.NoError(t, err)
	c, err := New("third", "/etc/c.conf", []byte("different"))
	require.NoError(t, err)

	la := LocatorFor("https://fsn1.your-objectstorage.com", "assets", a)
	lb := LocatorFor("https://fsn1.your-objectstorage.com", "assets", b)
	lc := LocatorFor("https://fsn1.your-objectstorage.com", "assets", c)

	assert.Equal(t, la, lb)
	assert.NotEqual(t, la, lc)
}

func TestVerify_DetectsTampering(t *testing.T) {
	a, err := New("cfg", "/etc/cfg", []byte("original"))
	require.NoError(t, err)
	a.Content = []byte("changed")
	assert.Error(t, a.Verify())
}

func TestLocator_URL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{name: "plain endpoint", endpoint: "https://fsn1.your-objectstorage.com", want: "https://fsn1.your-objectstorage.com/bucket/assets/sha256/abc"},
		{name: "trailing slash", endpoint: "https://fsn1.your-objectstorage.com/", want: "https://fsn1.your-objectstorage.com/bucket/assets/sha256/abc"},
		{name: "endpoint with path", endpoint: "http://127.0.0.1:9000/s3", want: "http://127.0.0.1:9000/s3/bucket/assets/sha256/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Locator{Endpoint: tt.endpoint, Bucket: "bucket", Key: "assets/sha256/abc"}
			assert.Equal(t, tt.want, l.URL())
		})
	}
	assert.Equal(t, "s3://bucket/k", Locator{Bucket: "bucket", Key: "k"}.String())
}

func TestSet_UniqueKeepsFirstPerDigest(t *testing.T) {
	s := NewSet()
	a, _ := New("a", "/a", []byte("same"))
	b, _ := New("b", "/b", []byte("same"))
	c, _ := New("c", "/c", []byte("other"))
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))
	require.NoError(t, s.Add(c))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []*Artifact{a, c}, s.Unique())
	assert.Equal(t, []*Artifact{a, b, c}, s.Items())

	got, ok := s.Get("b")
	assert.True(t, ok)
	assert.Same(t, b, got)

	dup, _ := New("a", "/z", []byte("z"))
	assert.Error(t, s.Add(dup))
}

func TestDefaults(t *testing.T) {
	set, err := Defaults(Options{
		Network:      "sepolia",
		Home:         "/home/node",
		LogStreams:   []LogStream{{Name: "n-sepolia-geth--stdout-log", Source: "geth_stdout", Path: "/home/node/geth.stdout.log"}},
		LogsBucket:   "n-logs",
		LogsEndpoint: "https://fsn1.your-objectstorage.com",
		LogsRegion:   "fsn1",
	})
	require.NoError(t, err)

	var names []string
	for _, a := range set.Items() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{InstallScript, NodeConfig, AgentConfig}, names)

	node, _ := set.Get(NodeConfig)
	assert.Equal(t, "/home/node/sepolia.ini", node.LocalPath)
	assert.Contains(t, string(node.Content), "NetworkId = 11155111")

	agent, _ := set.Get(AgentConfig)
	assert.Equal(t, AgentConfigPath, agent.LocalPath)
	content := string(agent.Content)
	assert.Contains(t, content, "geth_stdout:")
	assert.Contains(t, content, "- /home/node/geth.stdout.log")
	assert.Contains(t, content, `key_prefix: "n-sepolia-geth--stdout-log/%F/"`)
	assert.Contains(t, content, "bucket: n-logs")
	assert.Contains(t, content, `access_key_id: "${NODEFORGE_STORAGE_ACCESS_KEY}"`)
	assert.Contains(t, content, `secret_access_key: "${NODEFORGE_STORAGE_SECRET_KEY}"`)

	install, _ := set.Get(InstallScript)
	assert.True(t, strings.HasPrefix(string(install.Content), "#!/bin/bash"))
}

func TestDefaults_IsDeterministic(t *testing.T) {
	opts := Options{Network: "holesky", Home: "/home/node"}
	a, err := Defaults(opts)
	require.NoError(t, err)
	b, err := Defaults(opts)
	require.NoError(t, err)
	for i := range a.Items() {
		assert.Equal(t, a.Items()[i].Digest, b.Items()[i].Digest)
	}
}

func TestDefaults_Override(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "node.ini")
	require.NoError(t, os.WriteFile(custom, []byte("[Eth]\n"), 0o600))

	set, err := Defaults(Options{Network: "sepolia", Home: "/home/node", NodeConfigFile: custom})
	require.NoError(t, err)
	node, _ := set.Get(NodeConfig)
	assert.Equal(t, "[Eth]\n", string(node.Content))

	_, err = Defaults(Options{Network: "sepolia", Home: "/home/node", InstallScriptFile: filepath.Join(dir, "missing.sh")})
	assert.Error(t, err)
}

func TestDefaults_UnknownNetwork(t *testing.T) {
	_, err := Defaults(Options{Network: "goerli", Home: "/home/node"})
	assert.Error(t, err)
}
