package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/rs/zerolog"
)

type commandFn func(cc *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger zerolog.Logger
	Config config.Config
	Deps   *dependencies
	In     io.Reader
	Out    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(stderr, "Recovered from panic: %v\n%s", r, debug.Stack())
			exitCode = 1
		}
	}()

	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		_ = printUsage(stdout, config.Config{AppName: "authctl"})
		if len(args) < 1 {
			return 2
		}
		return 0
	}

	cmdName := args[0]
	cmd, ok := commands()[cmdName]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", cmdName)
		_ = printUsage(stderr, config.Config{AppName: "authctl"})
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel, cfg.GetEnv(), stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := newDependencies(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("build dependencies")
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := deps.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("close dependencies")
		}
	}()

	cc := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Deps:   deps,
		In:     stdin,
		Out:    stdout,
	}
	if err := cmd.run(cc, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		logger.Debug().Err(err).Str("command", cmdName).Msg("command failed")
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and store the credential pair",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account and sign in",
			run:         runRegister,
		},
		"whoami": {
			name:        "whoami",
			description: "Restore the stored session and show the current user",
			run:         runWhoami,
		},
		"refresh": {
			name:        "refresh",
			description: "Exchange the refresh token for a new pair",
			run:         runRefresh,
		},
		"logout": {
			name:        "logout",
			description: "Revoke the session on the backend and clear stored credentials",
			run:         runLogout,
		},
		"profile": {
			name:        "profile",
			description: "Update your own name, username or email",
			run:         runProfile,
		},
		"users": {
			name:        "users",
			description: "Admin user management: list, update, delete",
			run:         runUsers,
		},
		"watch": {
			name:        "watch",
			description: "Print every session state change until interrupted",
			run:         runWatch,
		},
	}
}

func printUsage(w io.Writer, cfg config.Config) error {
	if err := displayAppname(w, cfg.GetAppName()); err != nil {
		return err
	}
	if err := writef(w, "Usage: authctl <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}

	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-10s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func displayAppname(w io.Writer, appname string) error {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	return writef(w, "%s\n", myFigure.String())
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
