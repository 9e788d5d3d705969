// GrizzyClaw - personal AI agent
// License: MIT
// Copyright (c) 2026 GrizzyClaw contributors

// Package mcp calls tools on configured MCP servers. Servers are declared in
// a JSON manifest under a top-level mcpServers map; local servers are spawned
// over stdio and remote ones reached via streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
)

const (
	defaultCallTimeout      = 60 * time.Second
	defaultDiscoveryTimeout = 10 * time.Second
	transientRetryWait      = 1500 * time.Millisecond
)

// Client manages runtimes for all servers in one manifest. Discovery results
// are cached against the manifest's modification time, so editing the file
// invalidates the cache on the next call.
type Client struct {
	path             string
	callTimeout      time.Duration
	discoveryTimeout time.Duration
	sleep            func(time.Duration)

	mu         sync.Mutex
	runtimes   map[string]*runtime
	toolsCache map[string][]ToolInfo
	cacheMtime time.Time
}

func NewClient(manifestPath string) *Client {
	return &Client{
		path:             manifestPath,
		callTimeout:      defaultCallTimeout,
		discoveryTimeout: defaultDiscoveryTimeout,
		sleep:            time.Sleep,
		runtimes:         map[string]*runtime{},
	}
}

// CallTool invokes tool on the named server and returns the text content.
// A tool reporting an error result, and transport failures after one retry,
// both come back as errors.
func (c *Client) CallTool(ctx context.Context, server, tool string, args map[string]interface{}) (string, error) {
	rt, err := c.runtimeFor(server)
	if err != nil {
		return "", err
	}

	res, err := c.callOnce(ctx, rt, tool, args)
	if err != nil && isTransient(err) {
		logger.WarnCF("mcp", "transient tool call failure, retrying", map[string]interface{}{
			"server": server,
			"tool":   tool,
			"error":  err.Error(),
		})
		c.sleep(transientRetryWait)
		res, err = c.callOnce(ctx, rt, tool, args)
	}
	if err != nil {
		return "", fmt.Errorf("mcp %s.%s: %w", server, tool, err)
	}
	if res.IsError {
		msg := res.Text
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("mcp %s.%s: %s", server, tool, msg)
	}
	if res.Text == "" {
		return "(no output)", nil
	}
	return res.Text, nil
}

func (c *Client) callOnce(ctx context.Context, rt *runtime, tool string, args map[string]interface{}) (callResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return rt.callTool(callCtx, tool, args)
}

// DiscoverTools lists tools on every configured server. Servers that fail
// discovery are skipped; a missing manifest yields an empty map.
func (c *Client) DiscoverTools(ctx context.Context, force bool) (map[string][]ToolInfo, error) {
	mtime := c.manifestMtime()

	c.mu.Lock()
	if !force && c.toolsCache != nil && mtime.Equal(c.cacheMtime) {
		cached := c.toolsCache
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	servers, err := LoadServers(c.path)
	if err != nil {
		return nil, err
	}

	type discovered struct {
		name  string
		tools []ToolInfo
	}
	results := make(chan discovered, len(servers))
	var wg sync.WaitGroup
	for name := range servers {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			rt, err := c.runtimeFor(name)
			if err != nil {
				results <- discovered{name: name}
				return
			}
			listCtx, cancel := context.WithTimeout(ctx, c.discoveryTimeout)
			defer cancel()
			tools, err := rt.listTools(listCtx)
			if err != nil {
				logger.DebugCF("mcp", "tool discovery failed", map[string]interface{}{
					"server": name,
					"error":  err.Error(),
				})
				results <- discovered{name: name}
				return
			}
			results <- discovered{name: name, tools: tools}
		}(name)
	}
	wg.Wait()
	close(results)

	out := map[string][]ToolInfo{}
	for d := range results {
		if len(d.tools) > 0 {
			sort.Slice(d.tools, func(i, j int) bool { return d.tools[i].Name < d.tools[j].Name })
			out[d.name] = d.tools
		}
	}

	c.mu.Lock()
	c.toolsCache = out
	c.cacheMtime = mtime
	c.mu.Unlock()
	return out, nil
}

// HealthCheck probes every configured server and reports reachability.
func (c *Client) HealthCheck(ctx context.Context) map[string]bool {
	servers, err := LoadServers(c.path)
	if err != nil {
		logger.WarnC("mcp", "health check: "+err.Error())
		return map[string]bool{}
	}

	out := make(map[string]bool, len(servers))
	var outMu sync.Mutex
	var wg sync.WaitGroup
	for name := range servers {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			ok := false
			if rt, err := c.runtimeFor(name); err == nil {
				probeCtx, cancel := context.WithTimeout(ctx, c.discoveryTimeout)
				_, listErr := rt.listTools(probeCtx)
				cancel()
				ok = listErr == nil
			}
			outMu.Lock()
			out[name] = ok
			outMu.Unlock()
		}(name)
	}
	wg.Wait()
	return out
}

// Invalidate drops the discovery cache and closes cached runtimes so the
// next call reloads the manifest.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = nil
	c.cacheMtime = time.Time{}
	for name, rt := range c.runtimes {
		_ = rt.close()
		delete(c.runtimes, name)
	}
}

// Close shuts down all cached runtimes.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for name, rt := range c.runtimes {
		if err := rt.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.runtimes, name)
	}
	return firstErr
}

func (c *Client) runtimeFor(server string) (*runtime, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return nil, fmt.Errorf("mcp server name is required")
	}

	c.mu.Lock()
	if rt, ok := c.runtimes[server]; ok {
		c.mu.Unlock()
		return rt, nil
	}
	c.mu.Unlock()

	servers, err := LoadServers(c.path)
	if err != nil {
		return nil, err
	}
	cfg, ok := servers[server]
	if !ok {
		return nil, fmt.Errorf("mcp server %q not found in %s", server, c.path)
	}
	if !cfg.Remote() && strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("mcp server %q has neither url nor command", server)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rt, ok := c.runtimes[server]; ok {
		return rt, nil
	}
	rt := newRuntime(server, cfg, c.callTimeout)
	c.runtimes[server] = rt
	return rt, nil
}

func (c *Client) manifestMtime() time.Time {
	info, err := os.Stat(c.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "closed pipe")
}
