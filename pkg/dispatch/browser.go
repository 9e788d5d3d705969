// GrizzyClaw - personal AI agent
// License: MIT
// Copyright (c) 2026 GrizzyClaw contributors

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grizzyclaw/grizzyclaw/pkg/commands"
	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/utils"
)

const (
	browserTextLimit  = 2000
	browserLinksLimit = 3000
)

// BrowserAction executes one BROWSER_ACTION block. Every call acquires a
// fresh browser handle and releases it on all paths; sharing a handle between
// independently dispatched calls is what caused the hangs this replaces.
func (d *Dispatcher) BrowserAction(ctx context.Context, raw string, screenshotDir string) (ExecutionResult, bool) {
	parsed, ok := commands.Decode(raw)
	if !ok {
		return ExecutionResult{}, false
	}
	action, _ := parsed["action"].(string)
	action = strings.TrimSpace(action)
	params, _ := parsed["params"].(map[string]interface{})

	result, err := d.runBrowserAction(ctx, action, params, screenshotDir)
	if err != nil {
		logger.WarnCF("dispatch", "browser action failed", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
		return ExecutionResult{
			Display: "**❌ Browser error: " + err.Error() + "**\n\n",
			Failed:  true,
		}, true
	}
	return ExecutionResult{
		Display: "\n\n**🌐 Browser: " + action + "**\n" + result + "\n",
	}, true
}

func (d *Dispatcher) runBrowserAction(ctx context.Context, action string, params map[string]interface{}, screenshotDir string) (string, error) {
	if d.Browser == nil {
		return "", fmt.Errorf("browser disabled")
	}
	handle, err := d.Browser.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("browser unavailable: %w", err)
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			logger.DebugC("dispatch", "browser close: "+closeErr.Error())
		}
	}()

	switch action {
	case "navigate":
		url, _ := params["url"].(string)
		if strings.TrimSpace(url) == "" {
			return "❌ URL required for navigate action", nil
		}
		if err := handle.Navigate(ctx, url); err != nil {
			return "❌ Navigation failed: " + err.Error(), nil
		}
		return "✅ Navigated to: " + handle.URL(), nil

	case "screenshot":
		fullPage, _ := params["full_page"].(bool)
		png, err := handle.Screenshot(ctx, fullPage)
		if err != nil {
			return "❌ Screenshot failed: " + err.Error(), nil
		}
		path := filepath.Join(screenshotDir, "screenshot_"+d.now().Format("20060102_150405")+".png")
		if err := os.WriteFile(path, png, 0o600); err != nil {
			return "❌ Screenshot failed: " + err.Error(), nil
		}
		return "✅ Screenshot saved: `" + path + "`", nil

	case "get_text":
		text, err := handle.Text(ctx)
		if err != nil {
			return "❌ Get text failed: " + err.Error(), nil
		}
		return "✅ Page content:\n```\n" + utils.Truncate(text, browserTextLimit) + "\n```", nil

	case "get_links":
		links, err := handle.Links(ctx)
		if err != nil {
			return "❌ Get links failed: " + err.Error(), nil
		}
		encoded, _ := json.Marshal(links)
		return "✅ Links found:\n```json\n" + utils.Truncate(string(encoded), browserLinksLimit) + "\n```", nil

	case "click":
		selector, _ := params["selector"].(string)
		if strings.TrimSpace(selector) == "" {
			return "❌ Selector required for click action", nil
		}
		if err := handle.Click(ctx, selector); err != nil {
			return "❌ Click failed: " + err.Error(), nil
		}
		return "✅ Clicked element. Now on: " + handle.URL(), nil

	case "fill":
		selector, _ := params["selector"].(string)
		value, _ := params["value"].(string)
		if strings.TrimSpace(selector) == "" {
			return "❌ Selector required for fill action", nil
		}
		if err := handle.Fill(ctx, selector, value); err != nil {
			return "❌ Fill failed: " + err.Error(), nil
		}
		return "✅ Filled input with value", nil

	case "scroll":
		direction, _ := params["direction"].(string)
		if direction == "" {
			direction = "down"
		}
		if err := handle.Scroll(ctx, direction != "up"); err != nil {
			return "❌ Scroll failed: " + err.Error(), nil
		}
		return "✅ Scrolled " + direction, nil

	case "status":
		return "✅ Browser status:\n- URL: " + handle.URL(), nil

	default:
		return "❌ Unknown browser action: " + action, nil
	}
}
