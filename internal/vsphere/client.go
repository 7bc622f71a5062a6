// Package vsphere wraps the govmomi client with the two property retrievals
// the balancer needs: virtual machines and datastores.
package vsphere

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
)

type Client struct {
	client *govmomi.Client
}

// NewClient connects to the vCenter and authenticates the session.
func NewClient(ctx context.Context, host, username, password string, insecure bool) (*Client, error) {
	u, err := url.Parse(fmt.Sprintf("https://%s/sdk", host))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vCenter URL: %w", err)
	}
	u.User = url.UserPassword(username, password)

	client, err := govmomi.NewClient(ctx, u, insecure)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vCenter %s: %w", host, err)
	}
	return &Client{client: client}, nil
}

// Logout terminates the vCenter session.
func (c *Client) Logout(ctx context.Context) {
	_ = c.client.Logout(ctx)
}

// VirtualMachines retrieves the property snapshot of all vms in the
// inventory: name, annotation, hardware descriptor and runtime state.
func (c *Client) VirtualMachines(ctx context.Context) ([]mo.VirtualMachine, error) {
	m := view.NewManager(c.client.Client)
	v, err := m.CreateContainerView(ctx, c.client.ServiceContent.RootFolder, []string{"VirtualMachine"}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create VirtualMachine view: %w", err)
	}
	defer func() { _ = v.Destroy(ctx) }()

	var vms []mo.VirtualMachine
	err = v.Retrieve(ctx, []string{"VirtualMachine"},
		[]string{"name", "config.annotation", "config.hardware", "runtime"}, &vms)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve VirtualMachine properties: %w", err)
	}
	return vms, nil
}

// Datastores retrieves the property snapshot of all datastores: name,
// capacity, free space and the member vm list.
func (c *Client) Datastores(ctx context.Context) ([]mo.Datastore, error) {
	m := view.NewManager(c.client.Client)
	v, err := m.CreateContainerView(ctx, c.client.ServiceContent.RootFolder, []string{"Datastore"}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore view: %w", err)
	}
	defer func() { _ = v.Destroy(ctx) }()

	var datastores []mo.Datastore
	err = v.Retrieve(ctx, []string{"Datastore"},
		[]string{"name", "summary.freeSpace", "summary.capacity", "vm"}, &datastores)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve Datastore properties: %w", err)
	}
	return datastores, nil
}
