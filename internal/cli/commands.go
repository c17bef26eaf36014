package cli

import (
	"context"
	"errors"
	"fmt"
	stdmath "math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/sunalign/internal/logger"
	"github.com/Faultbox/sunalign/internal/store"
	"github.com/Faultbox/sunalign/internal/watch"
	"github.com/Faultbox/sunalign/pkg/lighting"
	"github.com/Faultbox/sunalign/pkg/math"
)

func newRotateCmd(app *App) *cobra.Command {
	var degrees bool

	cmd := &cobra.Command{
		Use:   "rotate <longitude> <latitude>",
		Short: "Convert a sun position into light rotation angles",
		Long: `Print the XYZ Euler rotation and quaternion that turn a light pointing
along +Z towards the given longitude/latitude (degrees).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lon, err := parseAngle("longitude", args[0])
			if err != nil {
				return err
			}
			lat, err := parseAngle("latitude", args[1])
			if err != nil {
				return err
			}
			if lat < -90 || lat > 90 {
				return fmt.Errorf("latitude %g outside [-90, 90]", lat)
			}

			e := lighting.ToRotation(lon, lat)
			q := lighting.ToQuat(lon, lat)
			if degrees {
				e = math.Euler{X: toDegrees(e.X), Y: toDegrees(e.Y), Z: toDegrees(e.Z)}
			}
			fmt.Fprintf(app.out, "rotation: x=%.6f y=%.6f z=%.6f\n", e.X, e.Y, e.Z)
			fmt.Fprintf(app.out, "quaternion: w=%.6f x=%.6f y=%.6f z=%.6f\n", q.W, q.X, q.Y, q.Z)
			return nil
		},
	}
	cmd.Flags().BoolVar(&degrees, "degrees", false, "print Euler angles in degrees instead of radians")
	return cmd
}

func parseAngle(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || stdmath.IsNaN(v) || stdmath.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func toDegrees(rad float64) float64 {
	return rad * 180 / stdmath.Pi
}

func newTrackCmd(app *App) *cobra.Command {
	var (
		mappingZ    float64
		setBaseline float64
	)

	cmd := &cobra.Command{
		Use:   "track <image>",
		Short: "Recompute the light rotation after the environment is turned",
		Long: `Read the stored sun rotation of an image and print the rotation a light
needs once the environment mapping is rotated by --mapping-z radians about Z.
The driven Z angle is the stored baseline minus the mapping rotation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.requireStore()
			if err != nil {
				return err
			}
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("set-baseline") {
				if err := s.SetBaseline(abs, setBaseline); err != nil {
					return err
				}
				app.log.Info("baseline updated", zap.String("path", abs), zap.Float64("z_org", setBaseline))
			}

			rec, err := s.Sun(abs)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w (run 'sunalign locate' first)", err)
			}
			if err != nil {
				return err
			}

			e := lighting.Follow(math.Euler{X: rec.RotX, Y: rec.RotY}, rec.ZOrg, mappingZ)
			fmt.Fprintf(app.out, "%s: baseline z=%.6f mapping z=%.6f\n", rec.ImagePath, rec.ZOrg, mappingZ)
			fmt.Fprintf(app.out, "  rotation: x=%.6f y=%.6f z=%.6f\n", e.X, e.Y, e.Z)
			return nil
		},
	}
	cmd.Flags().Float64Var(&mappingZ, "mapping-z", 0, "Z rotation of the environment mapping, radians")
	cmd.Flags().Float64Var(&setBaseline, "set-baseline", 0, "overwrite the stored baseline before tracking")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	var (
		initial  bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Locate the sun whenever a panorama changes",
		Long: `Watch directories and run locate on every supported image that is created
or rewritten. Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.openStore(); err != nil {
				return err
			}

			handle := func(ctx context.Context, path string) error {
				rec, err := app.analyze(ctx, path)
				if err != nil {
					return err
				}
				app.report(rec)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if initial {
				paths, err := expandImages(args)
				if err != nil {
					// An empty directory is not fatal; the watch starts anyway.
					app.log.Warn("initial scan", zap.Strings("dirs", args), zap.Error(err))
				}
				for _, p := range paths {
					if err := handle(ctx, p); err != nil {
						app.log.Error("locate failed", zap.String("path", p), zap.Error(err))
					}
				}
			}

			w, err := watch.New(args, handle,
				watch.WithDebounce(debounce),
				watch.WithLogger(logger.Named("watch")))
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	app.flags.RegisterAnalysis(cmd.Flags())
	cmd.Flags().BoolVar(&initial, "initial", false, "process existing images before watching")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is processed")
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analysis runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.requireStore()
			if err != nil {
				return err
			}
			runs, err := s.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(app.out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tIMAGE\tLON\tLAT\tZ_ORG\tTOOK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.6f\t%s\n",
					r.CreatedAt.Format(time.DateTime), r.ImagePath, r.Longitude, r.Latitude, r.ZOrg, r.Duration)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := app.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = app.out.Write(data)
			return err
		},
	})

	var output string
	save := &cobra.Command{
		Use:   "save",
		Short: "Write the effective configuration to the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			var err error
			if path == "" {
				path, err = app.cfg.Save()
			} else {
				err = app.cfg.SaveTo(path)
			}
			if err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(app.out, "Config written to %s\n", path)
			return nil
		},
	}
	save.Flags().StringVarP(&output, "output", "o", "", "write to this path instead of the config directory")
	cmd.AddCommand(save)

	return cmd
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(app.out, "sunalign %s (%s)\n", Version, runtime.Version())
		},
	}
}
