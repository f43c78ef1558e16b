// mcpify turns an existing project into an MCP server: detect inspects a
// project tree and writes a tool config, validate and view work with that
// config, and serve exposes it over MCP stdio.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/internal/debug"
	"github.com/mcpify/mcpify/internal/detect"
	"github.com/mcpify/mcpify/internal/dispatch"
	"github.com/mcpify/mcpify/internal/server"
	"github.com/mcpify/mcpify/internal/spec"
	"github.com/mcpify/mcpify/internal/validate"
	"github.com/mcpify/mcpify/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "mcpify",
		Usage:   "Expose an existing project's callable surface as MCP tools",
		Version: version.FullInfo(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write diagnostic output to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				debug.EnableDebug = "true"
				debug.SetDebugOutput(os.Stderr)
			}
			return nil
		},
		Commands: []*cli.Command{
			detectCommand(),
			viewCommand(),
			validateCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Analyze a project and write its tool config",
		ArgsUsage: "<project-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the config to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Value:   "auto",
				Usage:   "Detection strategy (auto, structural, openai)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one project directory")
			}
			root := c.Args().First()

			settings, err := config.Load(root)
			if err != nil {
				return err
			}
			registry := detect.NewRegistry(
				detect.NewOpenAIDetector(settings.Detect),
				detect.NewStructuralDetector(settings.Detect),
			)

			preference := c.String("strategy")
			if preference == "auto" && settings.Detect.Strategy != "" {
				preference = settings.Detect.Strategy
			}
			outcome, err := registry.Detect(c.Context, root, preference)
			if err != nil {
				return err
			}

			data, err := outcome.Config.Encode()
			if err != nil {
				return err
			}
			if out := c.String("output"); out != "" {
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Detected %d tools using the %s strategy, wrote %s\n",
					len(outcome.Config.Tools), outcome.Strategy, out)
				return nil
			}
			fmt.Fprintf(os.Stderr, "Detected %d tools using the %s strategy\n",
				len(outcome.Config.Tools), outcome.Strategy)
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Print a human-readable summary of a config",
		ArgsUsage: "<config.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one config file")
			}
			cfg, err := spec.Load(c.Args().First())
			if err != nil {
				return err
			}

			fmt.Printf("%s: %s\n", cfg.Name, cfg.Description)
			fmt.Printf("Backend: %s\n", describeBackend(cfg.Backend))
			fmt.Printf("Tools (%d):\n", len(cfg.Tools))
			for _, t := range cfg.Tools {
				fmt.Printf("  %s: %s\n", t.Name, t.Description)
				for _, p := range t.Params {
					line := fmt.Sprintf("    %s (%s)", p.Name, p.Type)
					if !p.Required {
						line += " optional"
					}
					if p.Default != nil {
						line += fmt.Sprintf(" default=%v", p.Default)
					}
					if p.Description != "" {
						line += ": " + p.Description
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}

func describeBackend(b spec.Backend) string {
	switch b.Kind {
	case spec.KindCommandline:
		return fmt.Sprintf("%s, command %q %v in %s", b.Kind, b.Command, b.BaseArgs, b.WorkDir)
	case spec.KindHTTP:
		return fmt.Sprintf("%s at %s", b.Kind, b.BaseURL)
	case spec.KindPythonModule:
		return fmt.Sprintf("%s, module %s", b.Kind, b.Module)
	}
	return string(b.Kind)
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a config and report diagnostics",
		ArgsUsage: "<config.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one config file")
			}
			cfg, err := spec.Load(c.Args().First())
			if err != nil {
				return err
			}

			report := validate.Validate(cfg)
			for _, diag := range report.Diagnostics {
				fmt.Printf("%s: %s: %s\n", diag.Severity, diag.Location, diag.Message)
			}
			if !report.Valid {
				return cli.Exit(fmt.Sprintf("config is not valid (%d errors)", len(report.Errors())), 1)
			}
			fmt.Printf("Config is valid: %d tools\n", len(cfg.Tools))
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve a config's tools over MCP stdio",
		ArgsUsage: "<config.json>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-call execution timeout",
				Value: 30 * time.Second,
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory backend paths are relative to (default: config file's directory)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one config file")
			}
			path := c.Args().First()
			cfg, err := spec.Load(path)
			if err != nil {
				return err
			}

			dir := c.String("dir")
			if dir == "" {
				dir = configDir(path)
			}
			settings, err := config.Load(dir)
			if err != nil {
				return err
			}
			timeout := settings.Dispatch.Timeout
			if c.IsSet("timeout") {
				timeout = c.Duration("timeout")
			}
			dispatcher, err := dispatch.New(cfg, dispatch.Options{
				Timeout: timeout,
				Python:  settings.Dispatch.Python,
				Dir:     dir,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, dispatcher)
			debug.LogMCP("serving %d tools from %s\n", len(cfg.Tools), path)
			return srv.Run(ctx)
		},
	}
}

func configDir(path string) string {
	return filepath.Dir(path)
}
