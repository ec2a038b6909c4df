package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vsinha/mfgplan/pkg/application/services/orchestration"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
	"github.com/vsinha/mfgplan/pkg/infrastructure/locking"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/gormstore"
	"github.com/vsinha/mfgplan/pkg/interfaces/cli/output"
)

// App holds what every command needs once configuration is loaded
type App struct {
	Config       *config.Config
	Store        *gormstore.Store
	Events       *events.InMemoryEventStore
	Orchestrator *orchestration.PlanningOrchestrator
	Logger       *logrus.Logger

	closers []func() error
}

// Close releases the database and lock connections
func (a *App) Close() error {
	if a.Events != nil {
		a.Events.Wait()
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Bootstrap opens the configured database and lock backend
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := config.ConfigureLogger(cfg); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := config.GetLogger()

	db, err := config.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Store: gormstore.New(db), Logger: logger}
	if sqlDB, err := db.DB(); err == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	var locker locking.Locker = locking.NewLocalLocker()
	if cfg.RedisAddress != "" {
		redisLocker, err := locking.NewRedisLocker(ctx, cfg.RedisAddress)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, redisLocker.Close)
		locker = redisLocker
	}

	app.Events = events.NewInMemoryEventStore(logger)
	app.Events.Subscribe(events.LogHandler(logger))
	app.Orchestrator = orchestration.NewPlanningOrchestrator(app.Store, cfg, locker, app.Events, logger)
	return app, nil
}

// offline marks commands that need no database
const offline = "offline"

type rootOptions struct {
	format    string
	outputDir string
	verbose   bool

	app *App
	out io.Writer
}

// NewRootCommand builds the planner command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{out: os.Stdout}

	root := &cobra.Command{
		Use:           "planner",
		Short:         "Batch planning, requirement explosion and issue reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := output.ParseFormat(opts.format); err != nil {
				return err
			}
			opts.out = cmd.OutOrStdout()
			if cmd.Annotations[offline] == "true" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// reports go to stdout, logs to stderr
			config.GetLogger().SetOutput(os.Stderr)
			app, err := Bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			opts.app = app
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.app == nil {
				return nil
			}
			return opts.app.Close()
		},
	}
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, csv, xlsx")
	root.PersistentFlags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory for results (required for xlsx)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(
		newImportCommand(opts),
		newBOMCommand(opts),
		newBatchesCommand(opts),
		newPlanCommand(opts),
		newMRPCommand(opts),
		newOverlayCommand(opts),
		newReconcileCommand(opts),
		newScheduleCommand(opts),
	)
	return root
}

// emit renders a command result in the selected format
func (o *rootOptions) emit(name string, data any, tables ...output.Table) error {
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return err
	}
	return output.Generate(o.out, output.Config{
		Format:    format,
		OutputDir: o.outputDir,
		Name:      name,
		Verbose:   o.verbose,
	}, data, tables)
}

// parseMonth accepts YYYY-MM or YYYY-MM-DD
func parseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q, want YYYY-MM", s)
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, s, err)
	}
	return d, nil
}

func parseDecimals(name, s string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := parseDecimal(name, part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
