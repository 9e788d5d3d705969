// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/grizzyclaw/grizzyclaw/pkg/agent"
	"github.com/grizzyclaw/grizzyclaw/pkg/browser"
	"github.com/grizzyclaw/grizzyclaw/pkg/bus"
	"github.com/grizzyclaw/grizzyclaw/pkg/channels"
	"github.com/grizzyclaw/grizzyclaw/pkg/config"
	"github.com/grizzyclaw/grizzyclaw/pkg/dispatch"
	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/mcp"
	"github.com/grizzyclaw/grizzyclaw/pkg/memory"
	"github.com/grizzyclaw/grizzyclaw/pkg/metrics"
	"github.com/grizzyclaw/grizzyclaw/pkg/providers"
	"github.com/grizzyclaw/grizzyclaw/pkg/scheduler"
	"github.com/grizzyclaw/grizzyclaw/pkg/session"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "grizzyclaw"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".grizzyclaw", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func validateRuntimeConfig(cfg *config.Config, requireDiscord bool) error {
	configPath := getConfigPath()
	if len(cfg.ProviderNames()) == 0 {
		return fmt.Errorf("no provider is configured: set an api_key (or a local api_base) under providers in %s or via GRIZZYCLAW_PROVIDERS_* env vars", configPath)
	}
	if requireDiscord && strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		return fmt.Errorf("channels.discord.token is required in %s or GRIZZYCLAW_CHANNELS_DISCORD_TOKEN", configPath)
	}
	return nil
}

// appRuntime bundles everything a running agent needs so the agent and
// gateway commands share one wiring path.
type appRuntime struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	loop      *agent.Loop
	router    *providers.Router
	mcpClient *mcp.Client
	store     *memory.SQLiteStore
	scheduler *scheduler.Scheduler
	sessions  *session.Manager
	prom      *metrics.Prometheus
}

func buildRuntime(cfg *config.Config) (*appRuntime, error) {
	var collector metrics.Collector = metrics.Nop{}
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		collector = prom
	}

	router, err := providers.NewRouterFromConfig(cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("initialize providers: %w", err)
	}

	store, err := memory.NewSQLiteStore(cfg.MemoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("initialize memory store: %w", err)
	}

	// Fired reminders land in long-term memory so the next turn's recall
	// surfaces them.
	sched := scheduler.New(cfg.TasksPath(), func(ctx context.Context, task scheduler.Task) {
		logger.InfoCF("scheduler", "Scheduled task fired",
			map[string]interface{}{"name": task.Name, "message": task.Message})
		if _, err := store.Save(ctx, "⏰ SCHEDULED REMINDER: "+task.Message, "scheduler", []string{"reminders"}); err != nil {
			logger.WarnCF("scheduler", "Failed to store reminder", map[string]interface{}{"error": err.Error()})
		}
	})
	if err := sched.Load(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load scheduled tasks: %w", err)
	}

	var ctrl browser.Controller
	if cfg.Browser.Enabled {
		ctrl = browser.NewRodController(cfg.Browser.Headless, time.Duration(cfg.Browser.NavTimeoutSecs)*time.Second)
	}

	mcpClient := mcp.NewClient(cfg.MCPServersPath())
	dispatcher := dispatch.New(mcpClient, store, ctrl, sched, collector)

	ttl := time.Duration(cfg.Sessions.TTLMinutes) * time.Minute
	sessions := session.NewManager(cfg.SessionsDir(), ttl)

	msgBus := bus.NewMessageBus()
	loop := agent.New(cfg, msgBus, router, dispatcher, sessions, store, mcpClient)

	return &appRuntime{
		cfg:       cfg,
		bus:       msgBus,
		loop:      loop,
		router:    router,
		mcpClient: mcpClient,
		store:     store,
		scheduler: sched,
		sessions:  sessions,
		prom:      prom,
	}, nil
}

func (rt *appRuntime) close() {
	rt.scheduler.Stop()
	if err := rt.mcpClient.Close(); err != nil {
		logger.WarnCF("main", "MCP shutdown error", map[string]interface{}{"error": err.Error()})
	}
	if err := rt.store.Close(); err != nil {
		logger.WarnCF("main", "Memory store close error", map[string]interface{}{"error": err.Error()})
	}
}

func runOnboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkspacePath(), 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	if err := os.MkdirAll(cfg.SessionsDir(), 0755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add a provider API key to", configPath)
	fmt.Println("     (openrouter/openai, or point ollama/lmstudio at a local backend)")
	fmt.Println("  2. (Gateway mode) Add your Discord bot token to channels.discord.token")
	fmt.Printf("  3. Chat locally: %s agent -m \"Hello!\"\n", appName)
	fmt.Printf("  4. Run gateway: %s gateway\n", appName)
	fmt.Printf("  5. Check readiness: %s status\n", appName)
	return nil
}

func runAgent(message, sessionKey string, debug bool) error {
	if debug {
		logger.Configure("debug", "")
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := validateRuntimeConfig(cfg, false); err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	logger.InfoCF("main", "Agent initialized",
		map[string]interface{}{
			"providers": strings.Join(rt.router.Providers(), ","),
			"session":   sessionKey,
		})

	if strings.TrimSpace(message) != "" {
		response := rt.loop.ProcessDirect(context.Background(), message, sessionKey, nil)
		fmt.Printf("\n%s %s\n", appName, response)
		return nil
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", appName)
	return interactiveMode(rt.loop, sessionKey)
}

func interactiveMode(loop *agent.Loop, sessionKey string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".grizzyclaw_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		response := loop.ProcessDirect(context.Background(), input, sessionKey, nil)
		fmt.Printf("\n%s %s\n\n", appName, response)
	}
}

func runGateway(debug bool) error {
	if debug {
		logger.Configure("debug", "")
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := validateRuntimeConfig(cfg, true); err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	channelManager, err := channels.NewManager(cfg, rt.bus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	fmt.Printf("✓ Providers: %s\n", strings.Join(rt.router.Providers(), ", "))
	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(channelManager.GetEnabledChannels(), ", "))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		rt.scheduler.Start(ctx)
		fmt.Println("✓ Scheduler started")
	}
	if rt.prom != nil {
		rt.prom.Serve(cfg.Metrics.Listen)
		fmt.Printf("✓ Metrics at http://%s/metrics\n", cfg.Metrics.Listen)
	}
	rt.sessions.StartReaper(ctx)

	if err := channelManager.StartAll(ctx); err != nil {
		rt.loop.Stop()
		return fmt.Errorf("start channels: %w", err)
	}

	go func() {
		if err := rt.loop.Run(ctx); err != nil {
			logger.ErrorCF("main", "Agent loop stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	fmt.Println("✓ Gateway started")
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	rt.loop.Stop()
	if err := channelManager.StopAll(context.Background()); err != nil {
		logger.WarnCF("main", "Channel shutdown error", map[string]interface{}{"error": err.Error()})
	}
	fmt.Println("✓ Gateway stopped")
	return nil
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Printf("Build: %s\n", build)
	}
	fmt.Println()

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	_, cfgErr := os.Stat(configPath)
	fmt.Println("Config:", configPath, mark(cfgErr == nil))

	workspace := cfg.WorkspacePath()
	_, wsErr := os.Stat(workspace)
	fmt.Println("Workspace:", workspace, mark(wsErr == nil))

	memoryDB := cfg.MemoryDBPath()
	if _, err := os.Stat(memoryDB); err == nil {
		fmt.Println("Memory DB:", memoryDB, "✓")
	} else {
		fmt.Println("Memory DB:", memoryDB, "not initialized")
	}

	fmt.Printf("Provider: %s\n", cfg.Agents.Defaults.Provider)
	fmt.Printf("Model: %s\n", cfg.Agents.Defaults.Model)

	names := cfg.ProviderNames()
	if len(names) == 0 {
		fmt.Println("Configured providers: none")
	} else {
		fmt.Printf("Configured providers: %s\n", strings.Join(names, ", "))
	}

	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Println("Discord token:", mark(discordReady))
	fmt.Println("Agent ready:", mark(len(names) > 0))
	fmt.Println("Gateway ready:", mark(len(names) > 0 && discordReady))
	return nil
}

func openScheduler() (*scheduler.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	sched := scheduler.New(cfg.TasksPath(), nil)
	if err := sched.Load(); err != nil {
		return nil, fmt.Errorf("load scheduled tasks: %w", err)
	}
	return sched, nil
}

func runTasksList() error {
	sched, err := openScheduler()
	if err != nil {
		return err
	}

	stats := sched.Stats()
	if stats.Total == 0 {
		fmt.Println("No scheduled tasks.")
		return nil
	}

	fmt.Println("\nScheduled Tasks:")
	fmt.Println("----------------")
	for _, task := range stats.Tasks {
		status := "enabled"
		if !task.Enabled {
			status = "disabled"
		}
		nextRun := "unknown"
		if !task.NextRun.IsZero() {
			nextRun = task.NextRun.Format("2006-01-02 15:04")
		}
		fmt.Printf("  %s (%s)\n", task.Name, task.ID)
		fmt.Printf("    Cron: %s\n", task.Cron)
		fmt.Printf("    Status: %s\n", status)
		fmt.Printf("    Next run: %s\n", nextRun)
		fmt.Printf("    Runs: %d\n", task.RunCount)
	}
	return nil
}

func runTasksAdd(name, message, cronExpr string, inMinutes int, atTime string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("--name is required")
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("--message is required")
	}

	if cronExpr == "" {
		var in *int
		if inMinutes > 0 {
			in = &inMinutes
		}
		if expr, ok := scheduler.NaturalToCron(in, atTime, time.Now()); ok {
			cronExpr = expr
		}
	}
	if cronExpr == "" {
		return fmt.Errorf("a schedule is required: use --cron, --in, or --at")
	}

	sched, err := openScheduler()
	if err != nil {
		return err
	}

	task, err := sched.Schedule(name, cronExpr, message, "")
	if err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}

	nextRun := "unknown"
	if !task.NextRun.IsZero() {
		nextRun = task.NextRun.Format("2006-01-02 15:04")
	}
	fmt.Printf("✓ Added task '%s' (%s)\n", task.Name, task.ID)
	fmt.Printf("  Cron: %s\n", task.Cron)
	fmt.Printf("  Next run: %s\n", nextRun)
	return nil
}

func runTasksRemove(id string) error {
	sched, err := openScheduler()
	if err != nil {
		return err
	}
	if sched.Unschedule(id) {
		fmt.Printf("✓ Removed task %s\n", id)
		return nil
	}
	return fmt.Errorf("task %s not found", id)
}

func runTasksEnable(id string, enable bool) error {
	sched, err := openScheduler()
	if err != nil {
		return err
	}

	var ok bool
	if enable {
		ok = sched.Enable(id)
	} else {
		ok = sched.Disable(id)
	}
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}

	state := "enabled"
	if !enable {
		state = "disabled"
	}
	fmt.Printf("✓ Task %s %s\n", id, state)
	return nil
}
