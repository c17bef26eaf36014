// Package cli implements the sunalign command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/sunalign/internal/config"
	"github.com/Faultbox/sunalign/internal/logger"
	"github.com/Faultbox/sunalign/internal/store"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

var errStoreDisabled = errors.New("results database is disabled (--no-store or store.enabled: false)")

// App carries the state shared by all commands of one invocation.
type App struct {
	flags config.Flags
	cfg   *config.Config
	store *store.Store
	log   *zap.Logger
	out   io.Writer
}

// Run executes the command line args, writing command output to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	app := &App{out: out, log: zap.NewNop()}
	defer app.close()

	root := NewRootCmd(app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd creates the root command bound to app.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sunalign",
		Short: "Find the sun in equirectangular panoramas and aim lights at it",
		Long: `sunalign smooths the luminance of an equirectangular panorama, finds the
brightest region, marks it on a preview and converts its position into the
rotation of a directional light.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
	}
	rootCmd.SetOut(app.out)
	app.flags.RegisterGlobal(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newLocateCmd(app))
	rootCmd.AddCommand(newRotateCmd(app))
	rootCmd.AddCommand(newTrackCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd(app))

	return rootCmd
}

// setup loads the configuration and starts logging. The database is opened
// lazily by the commands that need it.
func (a *App) setup() error {
	cfg, err := config.Load(&a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = logger.Named("cli")
	logger.Sugar.Debugf("Config: %+v", *cfg)
	return nil
}

// openStore returns the results database, or nil when it is disabled.
func (a *App) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.flags.NoStore || !a.cfg.Store.Enabled {
		return nil, nil
	}
	s, err := store.New(a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	a.log.Debug("results database opened", zap.String("path", a.cfg.Store.Path))
	a.store = s
	return s, nil
}

func (a *App) requireStore() (*store.Store, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errStoreDisabled
	}
	return s, nil
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing results database", zap.Error(err))
		}
		a.store = nil
	}
	logger.Sync()
}
