package artifact

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"
)

// KeyPrefix is the store prefix every artifact object lives under.
const KeyPrefix = "assets"

// Artifact is an immutable bootstrap file. Its identity is its content digest.
type Artifact struct {
	// Name is the logical name used in logs and download directives.
	Name string
	// LocalPath is where the instance writes the file.
	LocalPath string
	Content   []byte
	Digest    digest.Digest
}

// New returns an artifact whose digest is computed from content.
func New(name, localPath string, content []byte) (*Artifact, error) {
	if name == "" {
		return nil, fmt.Errorf("artifact name is required")
	}
	if !path.IsAbs(localPath) {
		return nil, fmt.Errorf("artifact %q: local path %q must be absolute", name, localPath)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("artifact %q: content is empty", name)
	}
	return &Artifact{
		Name:      name,
		LocalPath: localPath,
		Content:   content,
		Digest:    digest.FromBytes(content),
	}, nil
}

// Key returns the content-addressed store key.
func (a *Artifact) Key() string {
	return KeyFor(a.Digest)
}

// ShortDigest returns the first 12 hex characters of the digest.
func (a *Artifact) ShortDigest() string {
	return a.Digest.Encoded()[:12]
}

// Verify checks that Content still matches Digest.
func (a *Artifact) Verify() error {
	if err := a.Digest.Validate(); err != nil {
		return fmt.Errorf("artifact %q: %w", a.Name, err)
	}
	if a.Digest.Algorithm().FromBytes(a.Content) != a.Digest {
		return fmt.Errorf("artifact %q: content does not match digest %s", a.Name, a.Digest)
	}
	return nil
}

// KeyFor returns assets/<algorithm>/<hex> for d.
func KeyFor(d digest.Digest) string {
	return path.Join(KeyPrefix, d.Algorithm().String(), d.Encoded())
}

// Locator addresses an object in the content store.
type Locator struct {
	Endpoint string
	Bucket   string
	Key      string
}

// LocatorFor returns the locator of a in bucket at endpoint.
func LocatorFor(endpoint, bucket string, a *Artifact) Locator {
	return Locator{Endpoint: endpoint, Bucket: bucket, Key: a.Key()}
}

// URL returns the path-style HTTPS URL of the object.
func (l Locator) URL() string {
	u, err := url.Parse(strings.TrimRight(l.Endpoint, "/"))
	if err != nil || u.Host == "" {
		return strings.TrimRight(l.Endpoint, "/") + "/" + l.Bucket + "/" + l.Key
	}
	u.Path = path.Join("/", u.Path, l.Bucket, l.Key)
	return u.String()
}

func (l Locator) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}
