package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/bonfire/internal/logger"
	"github.com/marmos91/bonfire/pkg/chat"
	"github.com/marmos91/bonfire/pkg/config"
	"github.com/marmos91/bonfire/pkg/server"
	"github.com/spf13/pflag"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

const usage = `Bonfire - multi-client chat server

Usage:
  bonfire <command> [flags]

Commands:
  init      Write a default configuration file
  start     Start the server
  version   Print version information

Run 'bonfire <command> --help' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "version":
		fmt.Printf("bonfire %s (commit %s)\n", version, commit)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "Overwrite an existing configuration file")
	path := flags.StringP("config", "c", "", "Where to write the file (default: "+config.GetDefaultConfigPath()+")")
	if err := flags.Parse(args); err != nil {
		return err
	}

	target := *path
	if target == "" {
		target = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(target, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", target)
	return nil
}

func runStart(args []string) error {
	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	path := flags.StringP("config", "c", "", "Configuration file (default: "+config.GetDefaultConfigPath()+")")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	logger.Info("Bonfire %s starting", version)
	logger.Info("Chat: max users %d, recall %d, idle timeout %v, handshake timeout %v",
		cfg.Chat.MaxUsers, cfg.Chat.RecallCapacity, cfg.Chat.IdleTimeout, cfg.Chat.HandshakeTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := config.InitializeMetrics(cfg)
	metricsDone := make(chan error, 1)
	if m.Server != nil {
		go func() { metricsDone <- m.Server.Start(ctx) }()
	} else {
		close(metricsDone)
	}

	adapters, err := config.CreateAdapters(cfg, m.AdapterMetrics)
	if err != nil {
		return err
	}

	srv := server.New(cfg.ToServerConfig())
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	room, err := chat.New(cfg.ToChatConfig(), srv,
		chat.WithLogger(logger.New("room")),
		chat.WithMetrics(m.ChatMetrics),
	)
	if err != nil {
		return err
	}

	if m.Server != nil {
		go func() {
			select {
			case <-srv.Ready():
				m.Server.MarkReady()
			case <-ctx.Done():
			}
		}()
	}
	logger.Info("Server is running. Press Ctrl+C to stop.")
	runErr := srv.Run(ctx, room)

	// The metrics server stops with ctx.
	stop()
	if err := <-metricsDone; err != nil {
		logger.Warn("Metrics server: %v", err)
	}

	if runErr != nil {
		return fmt.Errorf("server stopped: %w", runErr)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
