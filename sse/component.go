package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/speechgate/component"
)

// Component runs a Hub under the component registry.
type Component struct {
	name string
	path string
	hub  *Hub
	wg   sync.WaitGroup
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a component serving hub events at path.
func NewComponent(name, path string) *Component {
	return &Component{name: name, path: path, hub: NewHub()}
}

// Hub returns the underlying hub.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return c.name }

// Start launches the hub loop.
func (c *Component) Start(context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop ends the hub loop, disconnecting every client.
func (c *Component) Stop(context.Context) error {
	c.hub.Stop()
	c.wg.Wait()
	return nil
}

func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.name,
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.name,
		Type:    "sse",
		Details: "path=" + c.path,
	}
}
