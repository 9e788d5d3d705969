// GrizzyClaw - personal AI agent
// License: MIT
// Copyright (c) 2026 GrizzyClaw contributors

package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ServerConfig describes one entry in the mcpServers file. Local servers set
// Command/Args, remote servers set URL. Env and Headers are optional.
type ServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    ArgList           `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Remote returns true when the server is reached over streamable HTTP.
func (c ServerConfig) Remote() bool {
	return strings.TrimSpace(c.URL) != ""
}

// ArgList tolerates args stored as a JSON array, a single string, or a string
// that itself contains a JSON array (a common copy-paste artifact in server
// manifests), and flattens everything to a plain list of strings.
type ArgList []string

func (a *ArgList) UnmarshalJSON(data []byte) error {
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		*a = normalizeArgs(asList)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*a = normalizeArgs([]string{asString})
		return nil
	}
	return fmt.Errorf("args must be a string or a list of strings")
}

func normalizeArgs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s := strings.TrimSpace(item)
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var nested []string
			if err := json.Unmarshal([]byte(s), &nested); err == nil {
				for _, n := range nested {
					n = strings.TrimSpace(n)
					if n != "" {
						out = append(out, n)
					}
				}
				continue
			}
		}
		out = append(out, strings.Fields(s)...)
	}
	return out
}

type serversFile struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// LoadServers reads the mcpServers manifest. A missing file is not an error;
// it just means no servers are configured.
func LoadServers(path string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ServerConfig{}, nil
		}
		return nil, fmt.Errorf("read mcp servers file: %w", err)
	}
	var file serversFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mcp servers file: %w", err)
	}
	if file.Servers == nil {
		file.Servers = map[string]ServerConfig{}
	}
	return file.Servers, nil
}

// endpointURL appends the /mcp path remote servers expect, unless the
// configured URL already ends with it.
func endpointURL(raw string) string {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	if url == "" {
		return ""
	}
	if strings.HasSuffix(url, "/mcp") {
		return url
	}
	return url + "/mcp"
}
