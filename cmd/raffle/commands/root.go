// Package commands implements the raffle command line tool. It works on the
// same durable record as the bot, so it should not run against a store the
// bot is writing at the same time.
package commands

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"rafflebot/internal/config"
	"rafflebot/internal/numbers"
	"rafflebot/internal/raffle"
	"rafflebot/internal/status"
	"rafflebot/internal/storage"
	logx "rafflebot/pkg/logx"
)

// cli holds what the persistent flags resolve to for one invocation.
type cli struct {
	cfgPath  string
	driver   string
	path     string
	logLevel string

	cfg   *config.Config
	log   logx.Logger
	store storage.Store
	svc   *raffle.Service
	area  *status.Area
}

// NewRoot builds the command tree. Each call is independent.
func NewRoot() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "raffle",
		Short:        "Manage the raffle number list offline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "config file (json or yaml); defaults apply when empty")
	root.PersistentFlags().StringVar(&c.driver, "storage-driver", "", "override storage.driver (memory, file, sqlite, redis, postgres)")
	root.PersistentFlags().StringVar(&c.path, "path", "", "override storage.path")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		addCmd(c),
		bulkCmd(c),
		searchCmd(c),
		listCmd(c),
		exportCmd(c),
		importCmd(c),
		clearCmd(c),
		backupCmd(c),
	)
	// the store is closed even when the command fails
	for _, sub := range root.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if cerr := c.close(); err == nil {
					err = cerr
				}
			}()
			return run(cmd, args)
		}
	}
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	c.log = logx.NewWriter(cmd.ErrOrStderr(), c.logLevel).With(logx.String("comp", "cli"))

	cfg := config.Default()
	if c.cfgPath != "" {
		loaded, err := config.NewManager(c.cfgPath, c.log).Load()
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.driver != "" {
		cfg.Storage.Driver = c.driver
	}
	if c.path != "" {
		cfg.Storage.Path = c.path
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.cfg = cfg

	sc, err := cfg.StorageRuntime()
	if err != nil {
		return err
	}
	st, err := storage.Open(sc, c.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	c.store = st

	rec := storage.NewRecord(st, sc.RecordKey(), c.log)
	// refuse to run rather than overwrite a record that could not be read
	ns, err := numbers.OpenStrict(cmd.Context(), rec, c.log)
	if err != nil {
		_ = c.close()
		return fmt.Errorf("load numbers: %w", err)
	}
	c.svc = raffle.New(ns, cfg.Parser(), c.log)
	c.area = status.NewArea(cfg.StatusPolicy())
	return nil
}

func (c *cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// report prints the outcome to stdout, or returns it as the command error
// when the action failed.
func (c *cli) report(cmd *cobra.Command, out raffle.Outcome) error {
	if out.Err != nil {
		return errors.New(out.Message)
	}
	if out.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	}
	return nil
}

func joinArgs(args []string) string { return strings.Join(args, " ") }

// numberCommands take numbers as positional arguments.
var numberCommands = map[string]bool{"add": true, "bulk": true, "search": true}

var negativeArg = regexp.MustCompile(`^-[0-9]`)

// SetArgs installs args on root. A negative number given to add, bulk or
// search would otherwise be parsed as a shorthand flag, so a "--" is placed
// in front of the first one.
func SetArgs(root *cobra.Command, args []string) {
	root.SetArgs(numbersAsArgs(args))
}

func numbersAsArgs(args []string) []string {
	inNumberCmd := false
	for i, a := range args {
		switch {
		case a == "--":
			return args
		case !inNumberCmd:
			inNumberCmd = numberCommands[a]
		case negativeArg.MatchString(a):
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i]...)
			out = append(out, "--")
			return append(out, args[i:]...)
		}
	}
	return args
}
