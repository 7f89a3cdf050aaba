// Command chibi is the interactive text front-end (spec §1, §6): a
// cobra-rooted CLI over the chibi façade. Argument parsing, session-file
// bookkeeping, and terminal rendering are front-end concerns the spec
// places out of scope in detail; this wires the façade's operations behind
// a conventional subcommand tree rather than reproducing a full TUI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chibi-cli/chibi/internal/chibi"
	chibictx "github.com/chibi-cli/chibi/internal/context"
	"github.com/chibi-cli/chibi/internal/ctxlock"
	"github.com/chibi-cli/chibi/internal/logx"
)

var (
	chibiHome   string
	projectRoot string
	verbose     bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chibi",
		Short: "interactive agentic coding assistant",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			chibi.ConfigureLogging(verbose)
		},
	}

	home, _ := os.UserHomeDir()
	cmd.PersistentFlags().StringVar(&chibiHome, "home", filepath.Join(home, ".chibi"), "Chibi home directory")
	cmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "project root for codebase-index and path-relative tools")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose logging")

	cmd.AddCommand(
		newSendCommand(),
		newListCommand(),
		newInspectCommand(),
		newSwitchCommand(),
		newCompactCommand(),
		newArchiveCommand(),
		newDestroyCommand(),
		newCacheCommand(),
		newLockCommand(),
		newIndexCommand(),
		newSweepCommand(),
	)
	return cmd
}

func newApp(ctx context.Context, interactive bool) (*chibi.App, error) {
	return chibi.New(ctx, chibi.Options{
		ChibiHome:   chibiHome,
		ProjectRoot: projectRoot,
		Interactive: interactive,
	})
}

// newSendCommand is the default interactive loop: a named context and an
// optional one-shot prompt, or a stdin REPL when no prompt is given.
func newSendCommand() *cobra.Command {
	var contextName, model string
	cmd := &cobra.Command{
		Use:   "send [prompt]",
		Short: "send a prompt to a context, or start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			app.BindContext(contextName, model)

			lock, err := app.AcquireLock(app.ContextDir(contextName), app.Config.ContextLockHeartbeatSeconds)
			if err != nil {
				return fmt.Errorf("acquire context lock: %w", err)
			}
			defer lock.Release()

			if len(args) > 0 {
				return sendOnce(ctx, app, contextName, args[0])
			}
			return sendLoop(ctx, app, contextName)
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "default", "context name")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func sendOnce(ctx context.Context, app *chibi.App, contextName, prompt string) error {
	final, _, err := app.RunSubAgent(ctx, contextName, prompt, 0)
	if err != nil {
		return err
	}
	fmt.Println(final)
	return nil
}

func sendLoop(ctx context.Context, app *chibi.App, contextName string) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("chibi [%s]> ", contextName)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			fmt.Printf("chibi [%s]> ", contextName)
			continue
		}
		final, _, err := app.RunSubAgent(ctx, contextName, line, 0)
		if err != nil {
			logx.ErrorCF("chibi", "turn failed", map[string]any{"error": err.Error()})
		} else {
			fmt.Println(final)
		}
		fmt.Printf("chibi [%s]> ", contextName)
	}
	return scanner.Err()
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(filepath.Join(chibiHome, "contexts"))
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Println(e.Name())
				}
			}
			return nil
		},
	}
}

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <context>",
		Short: "print a context's messages and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			c, err := app.LoadContext(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", c)
			return nil
		},
	}
	return cmd
}

func newSwitchCommand() *cobra.Command {
	var newName string
	cmd := &cobra.Command{
		Use:   "switch <context>",
		Short: "rename the active context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			oldDir := app.ContextDir(args[0])
			newDir := app.ContextDir(newName)
			return chibictx.Rename(oldDir, newDir, newName)
		},
	}
	cmd.Flags().StringVar(&newName, "to", "", "new context name")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newCompactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact <context>",
		Short: "manually compact a context's messages via the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			if app.Gateway == nil {
				return fmt.Errorf("no gateway configured")
			}
			dir := app.ContextDir(args[0])
			c, err := app.LoadContext(args[0])
			if err != nil {
				return err
			}
			systemPrompt := app.SystemPrompt(cmd.Context(), dir)
			return chibictx.Manual(cmd.Context(), dir, app.Gateway, app.Config.DefaultModel, c, app.Hooks, systemPrompt)
		},
	}
	return cmd
}

func newArchiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <context>",
		Short: "archive a context's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			return chibictx.Archive(app.ContextDir(args[0]))
		},
	}
}

func newDestroyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <context>",
		Short: "destroy a context's directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			return chibictx.Destroy(cmd.Context(), app.Hooks, app.ContextDir(args[0]), args[0])
		},
	}
}

func newCacheCommand() *cobra.Command {
	var maxAgeDays int
	cmd := &cobra.Command{
		Use:   "cache <context>",
		Short: "sweep the tool output cache for a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			maxAge := app.Config.ToolCacheMaxAgeDays
			if maxAgeDays > 0 {
				maxAge = maxAgeDays
			}
			result, err := app.ToolCache.Sweep(cmd.Context(), args[0], time.Duration(maxAge)*24*time.Hour, app.Config.ToolCacheMaxBytes, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", result)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "override the configured cache max age in days")
	return cmd
}

func newLockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <context>",
		Short: "report a context's lock status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			heartbeat := time.Duration(app.Config.ContextLockHeartbeatSeconds * float64(time.Second))
			status := ctxlock.GetStatus(app.ContextDir(args[0]), heartbeat)
			fmt.Println(status)
			return nil
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "run the auto-destroy sweep over every context now",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			result, err := chibictx.Sweep(cmd.Context(), app.Hooks, filepath.Join(app.ChibiHome, "contexts"))
			if err != nil {
				return err
			}
			fmt.Printf("scanned %d, destroyed %v\n", result.Scanned, result.Destroyed)
			return nil
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
