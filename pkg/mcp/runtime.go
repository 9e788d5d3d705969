// GrizzyClaw - personal AI agent
// License: MIT
// Copyright (c) 2026 GrizzyClaw contributors

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const protocolVersion = "2025-06-18"

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	Method  string          `json:"method,omitempty"`
}

// ToolInfo is a discovered tool on an MCP server.
type ToolInfo struct {
	Name        string
	Description string
}

// callResult is the parsed body of a tools/call response.
type callResult struct {
	Text    string
	IsError bool
}

// runtime holds one server connection. Remote servers talk JSON-RPC over
// streamable HTTP; local servers run as a child process speaking
// newline-delimited JSON-RPC on stdio. The stdio process persists across
// calls and is respawned after a transport failure.
type runtime struct {
	name    string
	cfg     ServerConfig
	timeout time.Duration

	httpClient *http.Client

	mu          sync.Mutex
	nextID      int64
	sessionID   string
	initialized bool

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func newRuntime(name string, cfg ServerConfig, timeout time.Duration) *runtime {
	return &runtime{
		name:       name,
		cfg:        cfg,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *runtime) listTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := r.call(ctx, "tools/list", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}
	out := make([]ToolInfo, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		out = append(out, ToolInfo{Name: name, Description: strings.TrimSpace(t.Description)})
	}
	return out, nil
}

func (r *runtime) callTool(ctx context.Context, tool string, args map[string]interface{}) (callResult, error) {
	raw, err := r.call(ctx, "tools/call", map[string]interface{}{
		"name":      tool,
		"arguments": args,
	})
	if err != nil {
		return callResult{}, err
	}
	var parsed struct {
		Content           []map[string]interface{} `json:"content"`
		StructuredContent interface{}              `json:"structuredContent"`
		IsError           bool                     `json:"isError"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return callResult{Text: string(raw)}, nil
	}
	parts := make([]string, 0, len(parsed.Content))
	for _, item := range parsed.Content {
		typ, _ := item["type"].(string)
		if typ != "text" {
			continue
		}
		txt, _ := item["text"].(string)
		txt = strings.TrimSpace(txt)
		if txt != "" {
			parts = append(parts, txt)
		}
	}
	text := strings.Join(parts, "\n")
	if text == "" && parsed.StructuredContent != nil {
		if structured, err := json.Marshal(parsed.StructuredContent); err == nil {
			text = string(structured)
		}
	}
	return callResult{Text: text, IsError: parsed.IsError}, nil
}

func (r *runtime) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetStdioLocked()
}

func (r *runtime) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if r.cfg.Remote() {
		return r.callHTTP(ctx, method, params)
	}
	return r.callStdio(ctx, method, params)
}

func initializeParams() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]interface{}{
			"name":    "grizzyclaw",
			"version": "dev",
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
}

func (r *runtime) callHTTP(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := r.ensureHTTPInitialized(ctx); err != nil {
		return nil, err
	}
	return r.postHTTP(ctx, method, params)
}

func (r *runtime) ensureHTTPInitialized(ctx context.Context) error {
	r.mu.Lock()
	ready := r.initialized
	r.mu.Unlock()
	if ready {
		return nil
	}
	if _, err := r.postHTTP(ctx, "initialize", initializeParams()); err != nil {
		return fmt.Errorf("mcp initialize %s: %w", r.name, err)
	}
	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()
	_, _ = r.postHTTP(ctx, "notifications/initialized", map[string]interface{}{})
	return nil
}

func (r *runtime) postHTTP(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	session := r.sessionID
	r.mu.Unlock()

	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(r.cfg.URL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.cfg.Headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	if session != "" {
		req.Header.Set("Mcp-Session-Id", session)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mcp http call failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	if sid := strings.TrimSpace(resp.Header.Get("Mcp-Session-Id")); sid != "" {
		r.mu.Lock()
		r.sessionID = sid
		r.mu.Unlock()
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode mcp response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("mcp rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func (r *runtime) callStdio(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureStdioInitializedLocked(ctx); err != nil {
		return nil, err
	}

	r.nextID++
	id := r.nextID
	if err := writeLine(r.stdin, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		_ = r.resetStdioLocked()
		return nil, err
	}
	resp, err := r.awaitResponseLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("mcp rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// awaitResponseLocked reads newline-delimited frames until it sees the
// response matching id, skipping server notifications and unrelated frames.
func (r *runtime) awaitResponseLocked(ctx context.Context, id int64) (*rpcResponse, error) {
	for {
		line, err := readLineWithContext(ctx, r.stdout, func() {
			_ = r.resetStdioLocked()
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				_ = r.resetStdioLocked()
			}
			return nil, err
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if responseID(resp.ID) != id {
			continue
		}
		return &resp, nil
	}
}

func (r *runtime) ensureStdioInitializedLocked(ctx context.Context) error {
	if err := r.ensureStdioStartedLocked(); err != nil {
		return err
	}
	if r.initialized {
		return nil
	}

	r.nextID++
	id := r.nextID
	if err := writeLine(r.stdin, rpcRequest{JSONRPC: "2.0", ID: id, Method: "initialize", Params: initializeParams()}); err != nil {
		return err
	}
	initCtx, cancel := context.WithTimeout(ctx, r.timeout)
	resp, err := r.awaitResponseLocked(initCtx, id)
	cancel()
	if err != nil {
		return fmt.Errorf("mcp initialize %s: %w", r.name, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("mcp initialize %s: rpc error %d: %s", r.name, resp.Error.Code, resp.Error.Message)
	}
	if err := writeLine(r.stdin, rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized", Params: map[string]interface{}{}}); err != nil {
		return err
	}
	r.initialized = true
	return nil
}

func (r *runtime) ensureStdioStartedLocked() error {
	if r.cmd != nil && r.cmd.Process != nil {
		return nil
	}
	command := strings.TrimSpace(r.cfg.Command)
	if command == "" {
		return fmt.Errorf("mcp server %s has no command", r.name)
	}
	cmd := exec.Command(command, r.cfg.Args...) // #nosec G204 - command originates from the local server manifest
	cmd.Env = serverEnviron(r.cfg.Env)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_, _ = io.Copy(io.Discard, stderr)
	}()

	r.cmd = cmd
	r.stdin = stdin
	r.stdout = bufio.NewReader(stdout)
	r.initialized = false
	return nil
}

func (r *runtime) resetStdioLocked() error {
	var closeErr error
	if r.stdin != nil {
		closeErr = r.stdin.Close()
	}
	if r.cmd != nil && r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
		_ = r.cmd.Wait()
	}
	r.cmd = nil
	r.stdin = nil
	r.stdout = nil
	r.initialized = false
	return closeErr
}

// serverEnviron extends the process environment with per-server entries and a
// PATH that covers the usual local tool locations. GUI-launched processes on
// macOS do not inherit the shell PATH, which breaks npx-based servers.
func serverEnviron(extra map[string]string) []string {
	env := os.Environ()
	path := os.Getenv("PATH")
	home, _ := os.UserHomeDir()
	candidates := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		home + "/.local/bin",
		home + "/.cargo/bin",
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() && !strings.Contains(path, p) {
			path = p + ":" + path
		}
	}
	env = append(env, "PATH="+path)
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func writeLine(w io.Writer, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

func readLine(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

func readLineWithContext(ctx context.Context, r *bufio.Reader, onCancel func()) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := readLine(r)
		ch <- result{data: line, err: err}
	}()

	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		// Drain the worker so it does not leak on cancellation.
		<-ch
		return nil, ctx.Err()
	case out := <-ch:
		return out.data, out.err
	}
}

func responseID(raw interface{}) int64 {
	switch id := raw.(type) {
	case float64:
		return int64(id)
	case int64:
		return id
	case int:
		return int64(id)
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
