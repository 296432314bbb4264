package cloudflare

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// Register binds the dns-zone and dns-record realizers.
func Register(reg *provisioning.Registry, c *Client) {
	reg.Register(provisioning.KindDNSZone, &zoneRealizer{c})
	reg.Register(provisioning.KindDNSRecord, &recordRealizer{c})
}

// zoneRealizer looks up an existing zone. Zones are owned by the operator
// and never created or deleted.
type zoneRealizer struct{ c *Client }

func (r *zoneRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, retry.Fatal(err)
	}
	zone, err := r.c.FindZone(ctx, name)
	if err != nil {
		return nil, err
	}
	return provisioning.Outputs{"id": zone.ID, "name": zone.Name}, nil
}

func (r *zoneRealizer) Delete(context.Context, provisioning.Request) error {
	return nil
}

type recordRealizer struct{ c *Client }

var supportedRecordTypes = map[string]bool{"A": true, "AAAA": true, "CNAME": true, "TXT": true}

func (r *recordRealizer) record(req provisioning.Request) (string, Record, error) {
	zoneID, err := req.RequireString("zone")
	if err != nil {
		return "", Record{}, retry.Fatal(err)
	}
	rec := Record{
		Type:    strings.ToUpper(req.String("type")),
		Name:    req.String("name"),
		Content: req.String("content"),
		TTL:     req.Int("ttl"),
		Proxied: req.Bool("proxied"),
	}
	if !supportedRecordTypes[rec.Type] {
		return "", Record{}, retry.Fatal(fmt.Errorf("dns record %s: unsupported type %q", req.ID, rec.Type))
	}
	if rec.Name == "" {
		return "", Record{}, retry.Fatal(fmt.Errorf("dns record %s: name is required", req.ID))
	}
	if rec.TTL == 0 {
		rec.TTL = 1
	}
	return zoneID, rec, nil
}

func (r *recordRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	zoneID, want, err := r.record(req)
	if err != nil {
		return nil, err
	}
	if want.Content == "" {
		return nil, retry.Fatal(fmt.Errorf("dns record %s: content is required", req.ID))
	}
	rec, err := r.c.UpsertRecord(ctx, zoneID, want)
	if err != nil {
		return nil, err
	}
	return provisioning.Outputs{
		"id":      rec.ID,
		"name":    want.Name,
		"content": want.Content,
		"url":     "https://" + want.Name,
	}, nil
}

func (r *recordRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	zoneID, rec, err := r.record(req)
	if err != nil {
		return err
	}
	return r.c.DeleteRecords(ctx, zoneID, rec.Type, rec.Name)
}
