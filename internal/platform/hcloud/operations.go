package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/retry"
)

// CreateResult wraps a created resource together with the actions that
// must finish before it is usable.
type CreateResult[T any] struct {
	Resource T
	Action   *hcloud.Action
	Actions  []*hcloud.Action
}

// DeleteOperation removes a resource looked up by name. A missing resource
// is success; locked resources are retried with backoff.
//
//	func (c *RealClient) DeleteFirewall(ctx context.Context, name string) error {
//	    return (&DeleteOperation[*hcloud.Firewall]{
//	        Name:         name,
//	        ResourceType: "firewall",
//	        Get:          c.client.Firewall.Get,
//	        Delete:       c.client.Firewall.Delete,
//	    }).Execute(ctx, c)
//	}
type DeleteOperation[T any] struct {
	Name         string
	ResourceType string

	Get    func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute runs the deletion bounded by the client's delete timeout.
func (op *DeleteOperation[T]) Execute(ctx context.Context, client *RealClient) error {
	ctx, cancel := context.WithTimeout(ctx, client.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, op.Name)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
		}
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		_, err = op.Delete(ctx, resource)
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(err)
		}
		return nil
	},
		retry.WithMaxRetries(client.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(client.timeouts.RetryInitialDelay))
}

// EnsureOperation is get-or-create for a named resource. An existing
// resource is validated first, then updated when Update and
// UpdateOptsMapper are both set.
//
//	func (c *RealClient) EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule) (*hcloud.Firewall, error) {
//	    return (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, hcloud.FirewallSetRulesOpts]{
//	        Name:         name,
//	        ResourceType: "firewall",
//	        Get:          c.client.Firewall.Get,
//	        Create:       c.createFirewall,
//	        Update:       c.client.Firewall.SetRules,
//	        CreateOptsMapper: func() hcloud.FirewallCreateOpts {
//	            return hcloud.FirewallCreateOpts{Name: name, Rules: rules}
//	        },
//	        UpdateOptsMapper: func(*hcloud.Firewall) hcloud.FirewallSetRulesOpts {
//	            return hcloud.FirewallSetRulesOpts{Rules: rules}
//	        },
//	    }).Execute(ctx, c)
//	}
type EnsureOperation[T any, CreateOpts any, UpdateOpts any] struct {
	Name         string
	ResourceType string

	Get    func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Create func(ctx context.Context, opts CreateOpts) (*CreateResult[T], *hcloud.Response, error)
	// Update converges an existing resource. Optional.
	Update func(ctx context.Context, resource T, opts UpdateOpts) ([]*hcloud.Action, *hcloud.Response, error)
	// Validate rejects an existing resource that cannot be converged. Optional.
	Validate func(resource T) error

	CreateOptsMapper func() CreateOpts
	UpdateOptsMapper func(resource T) UpdateOpts
}

// Execute returns the existing resource, converged, or creates it.
func (op *EnsureOperation[T, CreateOpts, UpdateOpts]) Execute(ctx context.Context, client *RealClient) (T, error) {
	var zero T

	resource, _, err := op.Get(ctx, op.Name)
	if err != nil {
		return zero, fmt.Errorf("failed to get %s: %w", op.ResourceType, err)
	}

	if !reflect.ValueOf(resource).IsNil() {
		if op.Validate != nil {
			if err := op.Validate(resource); err != nil {
				return zero, err
			}
		}
		if op.Update != nil && op.UpdateOptsMapper != nil {
			actions, _, err := op.Update(ctx, resource, op.UpdateOptsMapper(resource))
			if err != nil {
				return zero, fmt.Errorf("failed to update %s: %w", op.ResourceType, err)
			}
			if err := waitForActions(ctx, client.client, actions...); err != nil {
				return zero, fmt.Errorf("failed to wait for %s update: %w", op.ResourceType, err)
			}
		}
		return resource, nil
	}

	result, _, err := op.Create(ctx, op.CreateOptsMapper())
	if err != nil {
		if isInvalidParameter(err) {
			return zero, retry.Fatal(fmt.Errorf("failed to create %s: %w", op.ResourceType, err))
		}
		return zero, fmt.Errorf("failed to create %s: %w", op.ResourceType, err)
	}
	if err := waitForActionResult(ctx, client.client, result); err != nil {
		return zero, fmt.Errorf("failed to wait for %s creation: %w", op.ResourceType, err)
	}
	return result.Resource, nil
}

func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	if len(actions) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, actions...)
}

// waitForActionResult waits for the single Action if set, else Actions.
func waitForActionResult[T any](ctx context.Context, client *hcloud.Client, result *CreateResult[T]) error {
	if result.Action != nil {
		return client.Action.WaitFor(ctx, result.Action)
	}
	if len(result.Actions) > 0 {
		return client.Action.WaitFor(ctx, result.Actions...)
	}
	return nil
}

// simpleCreate adapts a create call that returns the resource directly.
func simpleCreate[T any, Opts any](
	createFn func(context.Context, Opts) (T, *hcloud.Response, error),
) func(context.Context, Opts) (*CreateResult[T], *hcloud.Response, error) {
	return func(ctx context.Context, opts Opts) (*CreateResult[T], *hcloud.Response, error) {
		resource, resp, err := createFn(ctx, opts)
		if err != nil {
			return nil, resp, err
		}
		return &CreateResult[T]{Resource: resource}, resp, nil
	}
}

// updateOnly adapts an update call that returns no actions.
func updateOnly[T any, Opts any](
	updateFn func(context.Context, T, Opts) (T, *hcloud.Response, error),
) func(context.Context, T, Opts) ([]*hcloud.Action, *hcloud.Response, error) {
	return func(ctx context.Context, resource T, opts Opts) ([]*hcloud.Action, *hcloud.Response, error) {
		_, resp, err := updateFn(ctx, resource, opts)
		return nil, resp, err
	}
}
