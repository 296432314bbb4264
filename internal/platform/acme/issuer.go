package acme

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	xacme "golang.org/x/crypto/acme"

	"github.com/imamik/nodeforge/internal/util/retry"
)

// ChallengeLabel prefixes the name dns-01 challenge records live under.
const ChallengeLabel = "_acme-challenge."

// CA is the part of *acme.Client the issuer drives.
type CA interface {
	Register(ctx context.Context, acct *xacme.Account, prompt func(tosURL string) bool) (*xacme.Account, error)
	AuthorizeOrder(ctx context.Context, id []xacme.AuthzID, opt ...xacme.OrderOption) (*xacme.Order, error)
	GetAuthorization(ctx context.Context, url string) (*xacme.Authorization, error)
	Accept(ctx context.Context, chal *xacme.Challenge) (*xacme.Challenge, error)
	WaitAuthorization(ctx context.Context, url string) (*xacme.Authorization, error)
	WaitOrder(ctx context.Context, url string) (*xacme.Order, error)
	CreateOrderCert(ctx context.Context, url string, csr []byte, bundle bool) ([][]byte, string, error)
	DNS01ChallengeRecord(token string) (string, error)
}

// DNSSolver publishes and removes challenge TXT records in a zone.
type DNSSolver interface {
	Present(ctx context.Context, zoneID, fqdn, value string) error
	CleanUp(ctx context.Context, zoneID, fqdn string) error
}

// Resolver looks up TXT records. *net.Resolver satisfies it.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Issuer obtains certificates for domains of one DNS zone.
type Issuer struct {
	ca       CA
	dns      DNSSolver
	resolver Resolver
	email    string
	poll     time.Duration
	wait     time.Duration

	mu         sync.Mutex
	registered bool
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithEmail sets the account contact address.
func WithEmail(email string) Option {
	return func(i *Issuer) { i.email = email }
}

// WithResolver replaces the resolver used to see challenge records.
func WithResolver(r Resolver) Option {
	return func(i *Issuer) { i.resolver = r }
}

// WithPropagation sets how often and how long the issuer looks for a
// published challenge record before asking the CA to validate it.
func WithPropagation(poll, wait time.Duration) Option {
	return func(i *Issuer) {
		if poll > 0 {
			i.poll = poll
		}
		if wait > 0 {
			i.wait = wait
		}
	}
}

// NewIssuer returns an issuer that talks to ca and publishes challenges
// through dns.
func NewIssuer(ca CA, dns DNSSolver, opts ...Option) *Issuer {
	i := &Issuer{
		ca:       ca,
		dns:      dns,
		resolver: net.DefaultResolver,
		poll:     10 * time.Second,
		wait:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewClient returns an ACME client for the directory at directoryURL
// signing with key.
func NewClient(key crypto.Signer, directoryURL string) *xacme.Client {
	return &xacme.Client{Key: key, DirectoryURL: directoryURL, UserAgent: "nodeforge"}
}

// Obtain orders a certificate for domains, answers every dns-01 challenge
// in zoneID, and returns the PEM chain and private key. It logs to the
// logger carried by ctx.
func (i *Issuer) Obtain(ctx context.Context, zoneID string, domains []string) (certPEM, keyPEM string, err error) {
	log := logr.FromContextOrDiscard(ctx)
	if len(domains) == 0 {
		return "", "", retry.Fatal(errors.New("acme: no domains to certify"))
	}
	if err := i.register(ctx); err != nil {
		return "", "", err
	}

	order, err := i.ca.AuthorizeOrder(ctx, xacme.DomainIDs(domains...))
	if err != nil {
		return "", "", fmt.Errorf("acme: order for %v failed: %w", domains, err)
	}

	var published []string
	defer func() {
		for _, name := range published {
			if cerr := i.dns.CleanUp(context.WithoutCancel(ctx), zoneID, name); cerr != nil {
				log.Error(cerr, "Failed to remove challenge record", "record", name)
			}
		}
	}()

	for _, u := range order.AuthzURLs {
		name, err := i.authorize(ctx, zoneID, u)
		if name != "" {
			published = append(published, name)
		}
		if err != nil {
			return "", "", err
		}
	}

	order, err = i.ca.WaitOrder(ctx, order.URI)
	if err != nil {
		return "", "", fmt.Errorf("acme: order for %v did not become ready: %w", domains, err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("acme: failed to generate certificate key: %w", err)
	}
	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: domains[0]},
		DNSNames: domains,
	}, key)
	if err != nil {
		return "", "", fmt.Errorf("acme: failed to create CSR: %w", err)
	}

	chain, _, err := i.ca.CreateOrderCert(ctx, order.FinalizeURL, csr, true)
	if err != nil {
		return "", "", fmt.Errorf("acme: finalizing order for %v failed: %w", domains, err)
	}
	if len(chain) == 0 {
		return "", "", errors.New("acme: CA returned an empty chain")
	}

	var certs strings.Builder
	for _, der := range chain {
		_ = pem.Encode(&certs, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("acme: failed to encode certificate key: %w", err)
	}
	log.Info("Certificate issued", "domains", domains, "chain", len(chain))
	return certs.String(), string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})), nil
}

// register creates the account once per issuer. An account that already
// exists for the key is reused.
func (i *Issuer) register(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.registered {
		return nil
	}
	acct := &xacme.Account{}
	if i.email != "" {
		acct.Contact = []string{"mailto:" + i.email}
	}
	if _, err := i.ca.Register(ctx, acct, xacme.AcceptTOS); err != nil && !errors.Is(err, xacme.ErrAccountAlreadyExists) {
		return fmt.Errorf("acme: account registration failed: %w", err)
	}
	i.registered = true
	return nil
}

// authorize answers the dns-01 challenge of one authorization. It returns
// the record name it published, if any, so the caller can remove it.
func (i *Issuer) authorize(ctx context.Context, zoneID, url string) (string, error) {
	authz, err := i.ca.GetAuthorization(ctx, url)
	if err != nil {
		return "", fmt.Errorf("acme: failed to get authorization: %w", err)
	}
	if authz.Status == xacme.StatusValid {
		return "", nil
	}

	idx := slices.IndexFunc(authz.Challenges, func(c *xacme.Challenge) bool { return c.Type == "dns-01" })
	if idx < 0 {
		return "", retry.Fatal(fmt.Errorf("acme: no dns-01 challenge offered for %s", authz.Identifier.Value))
	}
	chal := authz.Challenges[idx]

	value, err := i.ca.DNS01ChallengeRecord(chal.Token)
	if err != nil {
		return "", fmt.Errorf("acme: failed to compute challenge record: %w", err)
	}
	name := ChallengeLabel + strings.TrimPrefix(authz.Identifier.Value, "*.")
	if err := i.dns.Present(ctx, zoneID, name, value); err != nil {
		return "", fmt.Errorf("acme: failed to publish %s: %w", name, err)
	}
	if err := i.awaitRecord(ctx, name, value); err != nil {
		return name, err
	}

	if _, err := i.ca.Accept(ctx, chal); err != nil {
		return name, fmt.Errorf("acme: failed to accept challenge for %s: %w", authz.Identifier.Value, err)
	}
	if _, err := i.ca.WaitAuthorization(ctx, authz.URI); err != nil {
		var authzErr *xacme.AuthorizationError
		if errors.As(err, &authzErr) {
			return name, retry.Fatal(fmt.Errorf("acme: %s was not validated: %w", authz.Identifier.Value, err))
		}
		return name, fmt.Errorf("acme: waiting for %s failed: %w", authz.Identifier.Value, err)
	}
	return name, nil
}

// awaitRecord polls until name resolves to value or the propagation bound
// passes.
func (i *Issuer) awaitRecord(ctx context.Context, name, value string) error {
	waitCtx, cancel := context.WithTimeout(ctx, i.wait)
	defer cancel()

	err := retry.Poll(waitCtx, i.poll, func(ctx context.Context) (bool, error) {
		values, err := i.resolver.LookupTXT(ctx, name)
		if err != nil {
			logr.FromContextOrDiscard(ctx).V(1).Info("Challenge record not visible yet", "record", name, "error", err.Error())
			return false, nil
		}
		return slices.Contains(values, value), nil
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("acme: %s did not resolve within %s", name, i.wait)
		}
		return err
	}
	return nil
}
