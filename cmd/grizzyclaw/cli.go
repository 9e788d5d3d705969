// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	root := buildRootCommand(true)
	return root.Execute()
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "grizzyclaw",
		Short: "Personal AI agent with Discord gateway, MCP tools, memory, and provider routing",
		Long: strings.TrimSpace(`grizzyclaw is a personal agent runtime.

Use CLI commands to onboard, chat locally, run the Discord gateway, and
manage scheduled tasks. The agent routes generation across configured
providers, calls MCP tools, and remembers conversations in SQLite.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newAgentCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newTasksCommand())
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.grizzyclaw config and workspace",
		Long:    "Create default configuration and workspace directories for a new grizzyclaw installation.",
		Example: "  grizzyclaw onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

func newAgentCommand() *cobra.Command {
	var (
		message    string
		sessionKey string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Chat with the agent directly (CLI mode)",
		Long:  "Run an interactive local agent session or send a one-shot message without Discord.",
		Example: strings.Join([]string{
			"  grizzyclaw agent",
			"  grizzyclaw agent --session cli:research",
			"  grizzyclaw agent --message \"what did I save yesterday?\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(message, sessionKey, debug)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot prompt to send to the agent")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", "cli:default", "Session key for continuity")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the Discord gateway",
		Long:    "Start channel adapters, the agent loop, the task scheduler, and the metrics endpoint.",
		Example: "  grizzyclaw gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, provider, and runtime readiness",
		Example: "  grizzyclaw status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  grizzyclaw version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func newTasksCommand() *cobra.Command {
	tasksRoot := &cobra.Command{
		Use:   "tasks",
		Short: "Manage scheduled tasks",
		Long:  "Create and manage cron-timed reminder tasks for the agent.",
	}

	tasksRoot.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List scheduled tasks",
		Example: "  grizzyclaw tasks list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksList()
		},
	})

	var (
		name      string
		message   string
		cronExpr  string
		inMinutes int
		atTime    string
	)

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled task",
		Long:  "Add a task with a cron expression, or a natural schedule via --in (minutes) or --at (HH:MM).",
		Example: strings.Join([]string{
			"  grizzyclaw tasks add --name standup --message \"daily standup in 15\" --cron '45 8 * * 1-5'",
			"  grizzyclaw tasks add --name tea --message \"tea is ready\" --in 5",
			"  grizzyclaw tasks add --name call --message \"call the dentist\" --at 15:30",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksAdd(name, message, cronExpr, inMinutes, atTime)
		},
	}
	add.Flags().StringVarP(&name, "name", "n", "", "Task name")
	add.Flags().StringVarP(&message, "message", "m", "", "Reminder text delivered when the task fires")
	add.Flags().StringVarP(&cronExpr, "cron", "c", "", "Cron expression (e.g. '0 9 * * *')")
	add.Flags().IntVar(&inMinutes, "in", 0, "Fire once, N minutes from now")
	add.Flags().StringVar(&atTime, "at", "", "Fire once today/tomorrow at HH:MM")
	tasksRoot.AddCommand(add)

	tasksRoot.AddCommand(&cobra.Command{
		Use:     "remove <id>",
		Short:   "Remove a task by ID",
		Args:    cobra.ExactArgs(1),
		Example: "  grizzyclaw tasks remove task_1a2b3c4d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksRemove(args[0])
		},
	})

	tasksRoot.AddCommand(&cobra.Command{
		Use:     "enable <id>",
		Short:   "Enable a task",
		Args:    cobra.ExactArgs(1),
		Example: "  grizzyclaw tasks enable task_1a2b3c4d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksEnable(args[0], true)
		},
	})

	tasksRoot.AddCommand(&cobra.Command{
		Use:     "disable <id>",
		Short:   "Disable a task",
		Args:    cobra.ExactArgs(1),
		Example: "  grizzyclaw tasks disable task_1a2b3c4d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksEnable(args[0], false)
		},
	})

	return tasksRoot
}
