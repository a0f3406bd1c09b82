package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/automaton/internal"
	"github.com/starford/automaton/internal/action"
	pkgconfig "github.com/starford/automaton/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

var version = "dev"

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults so the CLI works without setup; an explicit path must
// exist.
func loadConfig(path string) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if path == defaultConfigPath {
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withApp wires the application for a one-shot command. Logs go to stderr
// so stdout carries only command output.
func withApp(ctx context.Context, cmd *cli.Command, fn func(*internal.App) error) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	app, err := internal.New(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("app init error: %w", err)
	}
	defer app.Close()
	return fn(app)
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return cli.Exit(fmt.Sprintf("usage: %s %s", cmd.Name, cmd.ArgsUsage), 2)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *internal.App) error {
		return app.ServeMCP(ctx, version)
	})
}

func list(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *internal.App) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, d := range app.Service().ListActions(ctx) {
			status := "ok"
			if d.Error != "" {
				status = d.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Key, d.URL, status)
		}
		return tw.Flush()
	})
}

func add(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withApp(ctx, cmd, func(app *internal.App) error {
		d, err := app.Service().CreateAction(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
		if err != nil {
			return err
		}
		fmt.Printf("added: %s\n", d.Key)
		return nil
	})
}

func set(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	return withApp(ctx, cmd, func(app *internal.App) error {
		d, err := app.Service().UpdateAction(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
		if err != nil {
			return err
		}
		fmt.Printf("updated: %s -> %s\n", d.Key, d.URL)
		return nil
	})
}

func remove(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withApp(ctx, cmd, func(app *internal.App) error {
		key := cmd.Args().Get(0)
		if err := app.Service().DeleteAction(ctx, key); err != nil {
			return err
		}
		fmt.Printf("deleted: %s\n", key)
		return nil
	})
}

func check(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withApp(ctx, cmd, func(app *internal.App) error {
		u, err := app.Service().CheckAction(ctx, cmd.Args().Get(0))
		if msg := action.Message(err); msg != "" {
			return cli.Exit(msg, 1)
		}
		if err != nil {
			return err
		}
		fmt.Printf("followable: %s\n", u)
		return nil
	})
}

func follow(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withApp(ctx, cmd, func(app *internal.App) error {
		u, err := app.Service().FollowAction(ctx, cmd.Args().Get(0))
		if msg := action.Message(err); msg != "" {
			return cli.Exit(msg, 1)
		}
		if err != nil {
			return err
		}
		fmt.Printf("opened: %s\n", u)
		return nil
	})
}

func importActions(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	var data []byte
	var err error
	if name := cmd.Args().Get(0); name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	return withApp(ctx, cmd, func(app *internal.App) error {
		res, err := app.Service().Import(ctx, data)
		if err != nil {
			return err
		}
		fmt.Printf("created %d, updated %d\n", res.Created, res.Updated)
		return nil
	})
}

func exportActions(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *internal.App) error {
		data, err := app.Service().Export(ctx)
		if err != nil {
			return err
		}
		if name := cmd.Args().Get(0); name != "" && name != "-" {
			return os.WriteFile(name, data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err
	})
}

func main() {
	cmd := &cli.Command{
		Name:    "automaton",
		Usage:   "Key-bound URL actions opened through the operating system",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "Run the HTTP API and change feed", Action: serve},
			{Name: "mcp", Usage: "Run the MCP server on stdio", Action: serveMCP},
			{Name: "list", Aliases: []string{"ls"}, Usage: "List actions", Action: list},
			{Name: "add", Usage: "Add an action", ArgsUsage: "KEY [URL]", Action: add},
			{Name: "set", Usage: "Change an action's URL", ArgsUsage: "KEY URL", Action: set},
			{Name: "rm", Usage: "Delete an action", ArgsUsage: "KEY", Action: remove},
			{Name: "check", Usage: "Check whether an action can be followed", ArgsUsage: "KEY", Action: check},
			{Name: "follow", Usage: "Open an action's URL", ArgsUsage: "KEY", Action: follow},
			{Name: "import", Usage: "Merge actions from a YAML file (- for stdin)", ArgsUsage: "FILE", Action: importActions},
			{Name: "export", Usage: "Write actions as YAML", ArgsUsage: "[FILE]", Action: exportActions},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
