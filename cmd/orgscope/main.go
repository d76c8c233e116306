// Command orgscope is a console front end for the dashboard core: it runs
// the startup loads, keeps the push channel open, and drives the
// conversation pipeline from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/orgscope/orgscope-go/internal/config"
	"github.com/orgscope/orgscope-go/internal/dotenv"
	"github.com/orgscope/orgscope-go/internal/store"
	"github.com/orgscope/orgscope-go/pkg/core/activity"
	"github.com/orgscope/orgscope-go/pkg/core/convo"
	"github.com/orgscope/orgscope-go/pkg/core/dashboard"
	orgscope "github.com/orgscope/orgscope-go/sdk"
)

type cliConfig struct {
	ConfigPath string
	BaseURL    string
	StateDir   string
	Verbose    bool
}

func parseCLIConfig(args []string, getenv func(string) string) (cliConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := cliConfig{}
	fs := flag.NewFlagSet("orgscope", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ConfigPath, "config", getenv("ORGSCOPE_CONFIG"), "path to the YAML config file")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "dashboard backend base URL (overrides config)")
	fs.StringVar(&cfg.StateDir, "state-dir", "", "directory for persisted client state (overrides config)")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	if err := validateCLIConfig(cfg); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func validateCLIConfig(cfg cliConfig) error {
	if cfg.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("base-url must be a valid absolute URL")
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "orgscope: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out, errOut io.Writer) error {
	if err := dotenv.Load(".env"); err != nil {
		return err
	}

	cli, err := parseCLIConfig(args, os.Getenv)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		return err
	}
	if cli.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(cli.BaseURL, "/")
		cfg.WebsocketURL = ""
	}
	if cli.StateDir != "" {
		cfg.StateDir = cli.StateDir
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	client := orgscope.NewClient(
		orgscope.WithBaseURL(cfg.BaseURL),
		orgscope.WithAIProviderURL(cfg.AIProviderURL),
		orgscope.WithLogger(logger),
	)

	controller := dashboard.New(dashboard.Options{
		Client:           client,
		WebsocketURL:     websocketURL(cfg),
		PushBaseDelay:    cfg.Push.BaseDelay,
		PushMaxAttempts:  cfg.Push.MaxAttempts,
		LoadUnitDelay:    cfg.Load.UnitDelay,
		RequiredAttempts: cfg.Load.RequiredAttempts,
		OptionalAttempts: cfg.Load.OptionalAttempts,
		Pipeline: convo.Config{
			ConfidenceThreshold: cfg.Convo.ConfidenceThreshold,
			Greeting:            cfg.Convo.Greeting,
		},
		Store:  store.New(cfg.StateDir),
		Logger: logger,
	})
	defer controller.Shutdown()

	controller.Activity().SetNotify(func(item activity.Item) {
		fmt.Fprintf(errOut, "[%s] %s\n", item.Severity, item.Message)
	})
	controller.Pipeline().SetOnMessage(func(msg convo.ChatMessage) {
		if msg.Sender == convo.SenderAssistant {
			fmt.Fprintf(out, "\nassistant: %s\n", msg.Body)
		}
	})

	ctx := context.Background()
	if err := controller.Start(ctx); err != nil {
		logger.Warn("startup loads incomplete", "error", err)
	}

	fmt.Fprintf(out, "Connected to %s\n", cfg.BaseURL)
	fmt.Fprintln(out, "Type a request, or /confirm, /refine, /reset, /status, /exit.")

	return repl(ctx, controller, in, out)
}

func websocketURL(cfg config.Config) string {
	if cfg.WebsocketURL != "" {
		return cfg.WebsocketURL
	}
	return config.WebsocketURLFor(cfg.BaseURL)
}

func repl(ctx context.Context, controller *dashboard.Controller, in io.Reader, out io.Writer) error {
	pipeline := controller.Pipeline()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/confirm":
			pending := pipeline.Current()
			if pending == nil {
				fmt.Fprintln(out, "nothing to confirm")
				continue
			}
			if err := pipeline.Confirm(ctx, pending.ID, nil); err != nil {
				fmt.Fprintf(out, "confirm: %v\n", err)
			}
		case "/refine":
			pipeline.Refine()
			fmt.Fprintln(out, "okay, rephrase your request")
		case "/reset":
			pipeline.Reset()
		case "/status":
			printStatus(controller, out)
		default:
			if err := pipeline.Submit(ctx, line, "text"); err != nil {
				fmt.Fprintf(out, "submit: %v\n", err)
			}
		}
	}
}

func printStatus(controller *dashboard.Controller, out io.Writer) {
	snap := controller.Snapshot()
	fmt.Fprintf(out, "push channel: %s\n", controller.Connection().State())
	fmt.Fprintf(out, "pipeline: %s\n", controller.Pipeline().State())
	if snap.Stats != nil {
		fmt.Fprintf(out, "associations: %d (%d AI enhanced)\n",
			snap.Stats.TotalAssociations, snap.Stats.AIEnhanced)
	}
	if snap.Health != nil {
		for _, component := range snap.Health.Components {
			fmt.Fprintf(out, "health %s: %s\n", component.Name, component.Status)
		}
	}
}
