package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mzyy94/ptpcam/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cli holds the state shared by all subcommands of one invocation.
type cli struct {
	configDir string
	host      string
	port      int
	logLevel  string
	tracePath string

	store    *config.Store
	settings config.Settings
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "ptpcam",
		Short: "Remote control for PTP-IP cameras",
		Long: `ptpcam connects to a camera over PTP-IP (TCP port 15740), reads and
changes shooting settings, and triggers captures with autofocus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configDir, "config-dir", "", "configuration directory (env PTPCAM_CONFIG_DIR)")
	f.StringVar(&c.host, "host", "", "camera address (env PTPCAM_HOST)")
	f.IntVar(&c.port, "port", 0, "camera port (env PTPCAM_PORT)")
	f.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (env PTPCAM_LOG_LEVEL)")
	f.StringVar(&c.tracePath, "trace", "", "append a CBOR packet trace to this file (env PTPCAM_TRACE)")

	root.AddCommand(
		c.discoverCmd(),
		c.getCmd(),
		c.setCmd(),
		c.captureCmd(),
		c.halfPressCmd(),
		c.callCmd(),
		c.eventsCmd(),
		c.traceCmd(),
		c.configCmd(),
	)
	return root
}

// setup loads the configuration file and applies environment variables,
// then flags, on top of it.
func (c *cli) setup(cmd *cobra.Command) error {
	dir := c.configDir
	if dir == "" {
		dir = envStr("PTPCAM_CONFIG_DIR", config.DefaultDir())
	}
	store, err := config.NewStore(dir)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	c.store = store

	s := store.Get()
	s.Host = envStr("PTPCAM_HOST", s.Host)
	s.Port = envInt("PTPCAM_PORT", s.Port)
	s.LogLevel = envStr("PTPCAM_LOG_LEVEL", s.LogLevel)
	s.TracePath = envStr("PTPCAM_TRACE", s.TracePath)

	flags := cmd.Flags()
	if flags.Changed("host") {
		s.Host = c.host
	}
	if flags.Changed("port") {
		s.Port = c.port
	}
	if flags.Changed("log-level") {
		s.LogLevel = c.logLevel
	}
	if flags.Changed("trace") {
		s.TracePath = c.tracePath
	}
	c.settings = s

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLogLevel(s.LogLevel)})))
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
