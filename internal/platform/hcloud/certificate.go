package hcloud

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// CertificateSource obtains a certificate chain and its key for domains
// whose DNS lives in zone.
type CertificateSource interface {
	Obtain(ctx context.Context, zone string, domains []string) (certPEM, keyPEM string, err error)
}

// ErrNoCertificateSource is returned when an uploaded certificate is
// needed but the client was built without WithCertificateSource.
var ErrNoCertificateSource = errors.New("no certificate source configured")

const generationLayout = "20060102150405"

// generationName names one issued certificate of the base name.
func generationName(base string, at time.Time) string {
	return base + "-" + at.UTC().Format(generationLayout)
}

// certificateGeneration lists every certificate named base or a generation
// of base, newest first.
func (c *RealClient) certificateGeneration(ctx context.Context, base string) ([]*hcloud.Certificate, error) {
	all, err := c.client.Certificate.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(-\d{14})?$`)
	var gen []*hcloud.Certificate
	for _, cert := range all {
		if pattern.MatchString(cert.Name) {
			gen = append(gen, cert)
		}
	}
	slices.SortFunc(gen, func(a, b *hcloud.Certificate) int { return b.Created.Compare(a.Created) })
	return gen, nil
}

// usable reports whether cert covers exactly domains and stays valid for
// longer than config.CertificateRenewal after now.
func usable(cert *hcloud.Certificate, domains []string, now time.Time) bool {
	if cert.Type != hcloud.CertificateTypeUploaded {
		return false
	}
	got := slices.Clone(cert.DomainNames)
	slices.Sort(got)
	return slices.Equal(got, domains) && cert.NotValidAfter.After(now.Add(config.CertificateRenewal))
}

// EnsureUploadedCertificate returns an uploaded certificate for domains
// that is not due for renewal. When none exists it obtains one from the
// certificate source and uploads it under a new generation name. Older
// generations no resource uses any more are removed.
func (c *RealClient) EnsureUploadedCertificate(ctx context.Context, name, zone string, domains []string, labels map[string]string) (*hcloud.Certificate, error) {
	want := slices.Clone(domains)
	slices.Sort(want)

	gen, err := c.certificateGeneration(ctx, name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var current *hcloud.Certificate
	if idx := slices.IndexFunc(gen, func(cert *hcloud.Certificate) bool { return usable(cert, want, now) }); idx >= 0 {
		current = gen[idx]
		if !maps.Equal(current.Labels, labels) {
			current, _, err = c.client.Certificate.Update(ctx, current, hcloud.CertificateUpdateOpts{Labels: labels})
			if err != nil {
				return nil, fmt.Errorf("failed to update certificate %s: %w", gen[idx].Name, err)
			}
		}
	} else {
		if c.certificates == nil {
			return nil, retry.Fatal(ErrNoCertificateSource)
		}
		certPEM, keyPEM, err := c.certificates.Obtain(ctx, zone, want)
		if err != nil {
			return nil, err
		}
		current, _, err = c.client.Certificate.Create(ctx, hcloud.CertificateCreateOpts{
			Name:        generationName(name, now),
			Type:        hcloud.CertificateTypeUploaded,
			Certificate: certPEM,
			PrivateKey:  keyPEM,
			Labels:      labels,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload certificate %s: %w", name, err)
		}
	}

	c.pruneCertificates(ctx, gen, current.ID)
	return current, nil
}

// pruneCertificates deletes generations other than keep that no load
// balancer references. Failures are left for the next run.
func (c *RealClient) pruneCertificates(ctx context.Context, gen []*hcloud.Certificate, keep int64) {
	for _, cert := range gen {
		if cert.ID == keep || len(cert.UsedBy) > 0 {
			continue
		}
		_, _ = c.client.Certificate.Delete(ctx, cert)
	}
}

// DeleteCertificate deletes every generation of the named certificate.
func (c *RealClient) DeleteCertificate(ctx context.Context, name string) error {
	gen, err := c.certificateGeneration(ctx, name)
	if err != nil {
		return err
	}
	for _, cert := range gen {
		err := (&DeleteOperation[*hcloud.Certificate]{
			Name:         cert.Name,
			ResourceType: "certificate",
			Get:          c.client.Certificate.Get,
			Delete:       c.client.Certificate.Delete,
		}).Execute(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to delete certificate %s: %w", cert.Name, err)
		}
	}
	return nil
}
