package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/nothanks/internal/broadcast"
	"github.com/lox/nothanks/internal/deadline"
	"github.com/lox/nothanks/internal/engine"
	"github.com/lox/nothanks/internal/eventlog"
	"github.com/lox/nothanks/internal/game"
	"github.com/lox/nothanks/internal/hint"
	"github.com/lox/nothanks/internal/monitor"
	"github.com/lox/nothanks/internal/server"
	"github.com/lox/nothanks/internal/store"
)

var CLI struct {
	Config   string `short:"c" default:"nothanks-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := server.LoadServerConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	logger.Info("Starting no-thanks server",
		"addr", cfg.GetServerAddress(),
		"turnTimeout", cfg.TurnTimeout(),
		"startingChips", cfg.Game.StartingChips)

	clock := quartz.NewReal()
	mon := monitor.NewLogMonitor(logger)

	repo := store.NewRepository(logger)
	gateway := broadcast.NewGateway(logger, mon)
	logs := eventlog.NewService(repo, gateway, clock, logger)
	supervisor := deadline.NewSupervisor(clock, logger, mon)

	eng := engine.New(engine.Options{
		Store:       repo,
		Logs:        logs,
		Gateway:     gateway,
		Deadlines:   supervisor,
		Hints:       hint.NewService(),
		Monitor:     mon,
		Clock:       clock,
		Logger:      logger,
		TurnTimeout: cfg.TurnTimeout(),
	})

	timeouts := engine.NewTimeoutHandler(eng, repo, gateway, mon, logger)
	supervisor.SetHandler(timeouts.HandleDeadline)
	supervisor.RestoreAll(repo)

	rules := game.Rules{
		StartingChips: cfg.Game.StartingChips,
		TurnTimeout:   cfg.TurnTimeout(),
	}
	service := server.NewSessionService(repo, eng, logs, gateway, supervisor, clock, rules, logger)
	wsServer := server.NewServer(cfg, service, clock, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Shutting down", "signal", sig)
		supervisor.StopAll()
		_ = wsServer.Stop()
	}()

	if err := wsServer.Start(); err != nil {
		logger.Error("Server exited with error", "error", err)
		ctx.Exit(1)
	}
}
