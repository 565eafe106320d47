package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/lotwatch/internal/plugin"
)

// Command delivers messages to external hooks: a single executable, every hook discovered
// in a directory, or both.
type Command struct {
	executor *plugin.Executor
	single   *plugin.Plugin
	manager  *plugin.Manager
}

// NewCommand creates a hook notifier. path names a standalone executable and dir a hook
// directory with plugin.json manifests; either may be empty.
func NewCommand(path, dir string, timeout time.Duration) (*Command, error) {
	c := &Command{executor: plugin.NewExecutor(timeout)}
	if path != "" {
		c.single = plugin.Standalone(path)
	}
	if dir != "" {
		c.manager = plugin.NewManager(dir)
		if err := c.manager.Discover(); err != nil {
			return nil, fmt.Errorf("discover hooks in %s: %w", dir, err)
		}
	}
	return c, nil
}

// Hooks returns the hooks that would receive event.
func (c *Command) Hooks(event string) []*plugin.Plugin {
	var hooks []*plugin.Plugin
	if c.single != nil {
		hooks = append(hooks, c.single)
	}
	if c.manager != nil {
		hooks = append(hooks, c.manager.Subscribed(event)...)
	}
	return hooks
}

// Send runs every subscribed hook once and joins their errors.
func (c *Command) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, hook := range c.Hooks(msg.Event) {
		req := &plugin.Request{
			Event:     msg.Event,
			Count:     msg.Count,
			Title:     msg.Title,
			Body:      msg.Body,
			ImagePath: msg.ImagePath,
			Time:      msg.Time,
		}

		resp, err := c.executor.Execute(ctx, hook, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !resp.Success {
			errs = append(errs, fmt.Errorf("hook %s: %s", hook.Manifest.Name, resp.Error))
		}
	}
	return errors.Join(errs...)
}
