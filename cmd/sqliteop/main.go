// sqliteop is a command-line front end for the database Operator.
//
// It runs statements and queries against one SQLite file, applies
// migrations, serves the monitoring API and streams change events. Every
// call goes through the Operator, so the configured MQTT, InfluxDB and
// Prometheus observers see CLI traffic the same way they see library use.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/sqliteop/internal/infrastructure/config"
	"github.com/nerrad567/sqliteop/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar names the config file when --config is not given.
const configEnvVar = "SQLITEOP_CONFIG"

// errUsage marks errors caused by bad command-line input.
var errUsage = errors.New("usage error")

const usage = `Usage: sqliteop [global flags] <command> [args]

Commands:
  exec SQL [--param V]...      run a statement; with params, one bound row
  bulk SQL [--file F]          run a statement once per JSON row (stdin by default)
  query SQL [--lazy] [--format table|json]
  migrate up|down|status [--dir DIR]
  demo                         run the Person walkthrough
  health                       check the database file is readable
  watch                        print change events from the MQTT broker
  serve                        run the monitoring API until interrupted
  version

Global flags:
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// globalFlags are accepted before the command name.
type globalFlags struct {
	configPath string
	dbPath     string
	autocommit bool
	wal        bool
	logLevel   string
}

// run parses args, loads configuration and dispatches the command.
// Command output goes to stdout; logs go to stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var gf globalFlags
	fs := pflag.NewFlagSet("sqliteop", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVarP(&gf.configPath, "config", "c", "", "config file (default $"+configEnvVar+", else built-in defaults)")
	fs.StringVar(&gf.dbPath, "db", "", "database file, overrides database.path")
	fs.BoolVar(&gf.autocommit, "autocommit", false, "run calls in autocommit mode")
	fs.BoolVar(&gf.wal, "wal", false, "enable write-ahead logging on writes")
	fs.StringVar(&gf.logLevel, "log-level", "", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: no command given", errUsage)
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "sqliteop %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := loadConfig(gf, fs)
	if err != nil {
		return err
	}

	// stdout carries command output, so logs always go to stderr.
	log := logging.NewWithWriter(cfg.Logging, version, stderr)
	log.Debug("configuration loaded", "database", cfg.Database.Path)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	c := &command{app: a, in: stdin, out: stdout, errOut: stderr}
	switch cmd {
	case "exec":
		return c.exec(ctx, cmdArgs)
	case "bulk":
		return c.bulk(ctx, cmdArgs)
	case "query":
		return c.query(ctx, cmdArgs)
	case "migrate":
		return c.migrate(ctx, cmdArgs)
	case "demo":
		return c.demo(ctx)
	case "health":
		return c.health(ctx)
	case "watch":
		return c.watch(ctx)
	case "serve":
		return c.serve(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// getConfigPath returns the --config value, else $SQLITEOP_CONFIG, else "".
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(configEnvVar)
}

// loadConfig reads the config file when one is named and applies the
// global flag overrides on top.
func loadConfig(gf globalFlags, fs *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	if path := getConfigPath(gf.configPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if gf.dbPath != "" {
		cfg.Database.Path = gf.dbPath
	}
	if fs.Changed("autocommit") {
		cfg.Database.Autocommit = gf.autocommit
	}
	if fs.Changed("wal") {
		cfg.Database.WALMode = gf.wal
	}
	if gf.logLevel != "" {
		cfg.Logging.Level = gf.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
