package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// WizardResult holds the answers collected by RunWizard.
type WizardResult struct {
	Stack        string
	Region       string
	Network      string
	Domain       string
	ServerType   string
	StateBackend string
	AdminCIDR    string
}

// RunWizard asks for the handful of settings a new deployment needs.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Region:       "fsn1",
		Network:      DefaultNetwork,
		ServerType:   DefaultServerType,
		StateBackend: DefaultStateBackend,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Stack name").
				Description("Prefix for every resource (lowercase, 2-32 characters)").
				Placeholder("sepolia-node").
				Value(&result.Stack).
				Validate(ValidateStackName),
			huh.NewSelect[string]().
				Title("Region").
				Description("Hetzner Cloud location with object storage").
				Options(
					huh.NewOption("Falkenstein, Germany (fsn1)", "fsn1"),
					huh.NewOption("Nuremberg, Germany (nbg1)", "nbg1"),
					huh.NewOption("Helsinki, Finland (hel1)", "hel1"),
				).
				Value(&result.Region),
		).Title("Deployment"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Ethereum network").
				Options(networkOptions()...).
				Value(&result.Network),
			huh.NewSelect[string]().
				Title("Server type").
				Description("Arm instances with a data volume attached").
				Options(
					huh.NewOption("CAX21 - 4 vCPU, 8GB RAM", "cax21"),
					huh.NewOption("CAX31 - 8 vCPU, 16GB RAM", "cax31"),
					huh.NewOption("CAX41 - 16 vCPU, 32GB RAM", "cax41"),
				).
				Value(&result.ServerType),
		).Title("Node"),

		huh.NewGroup(
			huh.NewInput().
				Title("Domain").
				Description("node.example.com, or 'node example.com' to create a subdomain").
				Placeholder("rpc.example.com").
				Value(&result.Domain).
				Validate(validateDomainAnswer),
			huh.NewInput().
				Title("Admin CIDR (optional)").
				Description("Opens SSH from this range. Leave empty to keep SSH closed.").
				Placeholder("203.0.113.0/24").
				Value(&result.AdminCIDR),
		).Title("Edge"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("State backend").
				Options(
					huh.NewOption("Local SQLite file", StateBackendSQLite),
					huh.NewOption("S3 object in the content store", StateBackendS3),
				).
				Value(&result.StateBackend),
		).Title("State"),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}
	return result, nil
}

// ToConfig converts the answers into a defaulted, validated Config.
func (r *WizardResult) ToConfig() (*Config, error) {
	domain, err := parseDomainAnswer(r.Domain)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Stack:   r.Stack,
		Region:  r.Region,
		Network: r.Network,
		Domain:  domain,
		Node:    NodeConfig{ServerType: r.ServerType},
		State:   StateConfig{Backend: r.StateBackend},
	}
	if cidr := strings.TrimSpace(r.AdminCIDR); cidr != "" {
		cfg.Access.AdminCIDRs = []string{cidr}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func networkOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(SupportedNetworks))
	for _, n := range SupportedNetworks {
		opts = append(opts, huh.NewOption(n, n))
	}
	return opts
}

func validateDomainAnswer(s string) error {
	d, err := parseDomainAnswer(s)
	if err != nil {
		return err
	}
	return d.validate()
}

// parseDomainAnswer accepts "fqdn" or "sub parent".
func parseDomainAnswer(s string) (DomainSpec, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return NewDomain(fields[0]), nil
	case 2:
		return NewSubdomain(fields[0], fields[1]), nil
	default:
		return DomainSpec{}, fmt.Errorf("expected a domain or 'subdomain parent'")
	}
}
