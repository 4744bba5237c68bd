package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/cubegame/internal/config"
	"github.com/mcoot/cubegame/internal/factory"
	"github.com/mcoot/cubegame/internal/services/movement"
	"github.com/mcoot/cubegame/internal/session"
)

const statusInterval = time.Second

// loadApp builds the application from the config file, the environment and flags
func loadApp(cmd *cobra.Command, override func(*config.Config)) (*factory.App, error) {
	appCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(&appCfg)
		if err := appCfg.Validate(); err != nil {
			return nil, err
		}
	}

	level, _ := appCfg.Level()
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return factory.New(appCfg, logger)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// runClient starts the client world, runs start, then reports status until interrupted
func runClient(cmd *cobra.Command, app *factory.App, keys string, start func(ctx context.Context) error) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	defer app.Close()

	app.Keys.Set(movement.ParseKeys(keys))
	app.Start(ctx)

	if err := start(ctx); err != nil {
		stop()
		_ = app.Wait()
		return err
	}

	go reportStatus(ctx, app.Session, NewOutput(cfg.Output, cmd.OutOrStdout()))
	return app.Wait()
}

// reportStatus prints the connection status whenever it changes
func reportStatus(ctx context.Context, sess *session.Session, out *Output) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			text, err := sess.StatusText(ctx)
			if err != nil || text == last {
				continue
			}
			last = text
			out.PrintMessage(text)
		}
	}
}

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a dedicated server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, func(c *config.Config) {
				if port != 0 {
					c.Session.Port = port
				}
			})
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			addr := net.JoinHostPort(app.Config.HTTP.Host, strconv.Itoa(app.Config.Session.Port))
			if err := app.Listen(ctx, addr); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("listening on " + app.ListenAddr().String())
			return app.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (env: CUBEGAME_PORT)")
	return cmd
}

func newHostCmd() *cobra.Command {
	var port int
	var keys string

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a session and join it over loopback",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, nil)
			if err != nil {
				return err
			}
			return runClient(cmd, app, keys, func(ctx context.Context) error {
				return app.Session.Host(ctx, port)
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (env: CUBEGAME_PORT)")
	cmd.Flags().StringVar(&keys, "keys", "", "Movement keys to hold, e.g. wd")
	return cmd
}

func newJoinCmd() *cobra.Command {
	var port int
	var address, keys string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a session hosted elsewhere",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, nil)
			if err != nil {
				return err
			}
			return runClient(cmd, app, keys, func(ctx context.Context) error {
				return app.Session.Join(ctx, address, port)
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Server address (env: CUBEGAME_ADDRESS)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port (env: CUBEGAME_PORT)")
	cmd.Flags().StringVar(&keys, "keys", "", "Movement keys to hold, e.g. wd")
	return cmd
}

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start interactively, or host straight away when auto-connect is on",
		Long: `play hosts a session on the configured port when auto-connect is enabled
(env: CUBEGAME_AUTOCONNECT). Otherwise it reads commands from stdin:

  host [port]
  join [address] [port]
  keys <wasd>
  status
  quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, nil)
			if err != nil {
				return err
			}
			return runClient(cmd, app, "", func(ctx context.Context) error {
				if _, err := app.Session.Bootstrap(ctx); err != nil {
					return err
				}
				go readCommands(ctx, cmd.InOrStdin(), app, NewOutput(cfg.Output, cmd.OutOrStdout()))
				return nil
			})
		},
	}
	return cmd
}

// readCommands executes commands typed on in. quit interrupts the process;
// end of input only stops reading.
func readCommands(ctx context.Context, in io.Reader, app *factory.App, out *Output) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line, err := parseLine(scanner.Text())
		if err != nil {
			out.PrintMessage(err.Error())
			continue
		}
		switch line.action {
		case actionNone:
		case actionQuit:
			if p, err := os.FindProcess(os.Getpid()); err == nil {
				_ = p.Signal(os.Interrupt)
			}
			return
		case actionKeys:
			app.Keys.Set(line.keys)
		case actionStatus:
			if text, err := app.Session.StatusText(ctx); err == nil {
				out.PrintMessage(text)
			}
		case actionSession:
			if err := app.Session.Execute(ctx, line.command); err != nil {
				out.PrintMessage(err.Error())
			}
		}
	}
}

type lineAction int

const (
	actionNone lineAction = iota
	actionSession
	actionKeys
	actionStatus
	actionQuit
)

type parsedLine struct {
	action  lineAction
	command session.Command
	keys    movement.Keys
}

// parseLine reads one interactive command
func parseLine(text string) (parsedLine, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return parsedLine{action: actionNone}, nil
	}

	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "host":
		if len(args) > 1 {
			return parsedLine{}, fmt.Errorf("usage: host [port]")
		}
		cmd := session.Command{Kind: session.CommandHost}
		if len(args) == 1 {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return parsedLine{}, fmt.Errorf("invalid port %q", args[0])
			}
			cmd.Port = port
		}
		return parsedLine{action: actionSession, command: cmd}, nil

	case "join":
		if len(args) > 2 {
			return parsedLine{}, fmt.Errorf("usage: join [address] [port]")
		}
		cmd := session.Command{Kind: session.CommandJoin}
		if len(args) >= 1 {
			cmd.Address = args[0]
		}
		if len(args) == 2 {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return parsedLine{}, fmt.Errorf("invalid port %q", args[1])
			}
			cmd.Port = port
		}
		return parsedLine{action: actionSession, command: cmd}, nil

	case "keys":
		return parsedLine{action: actionKeys, keys: movement.ParseKeys(strings.Join(args, ""))}, nil
	case "status":
		return parsedLine{action: actionStatus}, nil
	case "quit", "exit":
		return parsedLine{action: actionQuit}, nil
	default:
		return parsedLine{}, fmt.Errorf("unknown command %q", fields[0])
	}
}
