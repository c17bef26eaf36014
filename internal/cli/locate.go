package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/sunalign/internal/store"
	"github.com/Faultbox/sunalign/internal/watch"
	"github.com/Faultbox/sunalign/pkg/formats"
	"github.com/Faultbox/sunalign/pkg/lighting"
	"github.com/Faultbox/sunalign/pkg/sun"
)

func newLocateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate <image|dir>...",
		Short: "Locate the sun in one or more panoramas",
		Long: `Locate the brightest region of each panorama, write an annotated preview
and store the position and light rotation in the results database.
Directories are expanded to the supported images they contain.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandImages(args)
			if err != nil {
				return err
			}
			if _, err := app.openStore(); err != nil {
				return err
			}

			failed := 0
			for _, p := range paths {
				rec, err := app.analyze(cmd.Context(), p)
				if err != nil {
					if len(paths) == 1 {
						return err
					}
					app.log.Error("locate failed", zap.String("path", p), zap.Error(err))
					failed++
					continue
				}
				app.report(rec)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(paths))
			}
			return nil
		},
	}
	app.flags.RegisterAnalysis(cmd.Flags())
	return cmd
}

// expandImages replaces directory arguments with the images inside them.
func expandImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			p := filepath.Join(arg, e.Name())
			if !e.IsDir() && watch.IsCandidate(p) {
				found = append(found, p)
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported images in %v", args)
	}
	return paths, nil
}

func (a *App) locator() *sun.Locator {
	an := a.cfg.Analysis
	return sun.NewLocator(
		sun.WithSigma(an.Sigma),
		sun.WithMarker(sun.RingSpec{Radius: an.MarkerRadius, Thickness: an.MarkerThickness}),
		sun.WithPoint(sun.RingSpec{Radius: an.PointRadius, Thickness: an.PointThickness}),
	)
}

// analyze runs the full locate pipeline on one file: load, reduce, locate,
// convert to a rotation, then write the preview and the stored record.
func (a *App) analyze(ctx context.Context, path string) (store.SunRecord, error) {
	if err := ctx.Err(); err != nil {
		return store.SunRecord{}, err
	}
	start := time.Now()

	abs, err := filepath.Abs(path)
	if err != nil {
		return store.SunRecord{}, err
	}

	buf, err := formats.Load(abs)
	if err != nil {
		return store.SunRecord{}, fmt.Errorf("loading %s: %w", path, err)
	}
	work := formats.FitWidth(buf, a.cfg.Preview.MaxWidth)
	a.log.Debug("image loaded",
		zap.String("path", abs),
		zap.Int("width", buf.Width), zap.Int("height", buf.Height),
		zap.Int("work_width", work.Width), zap.Int("work_height", work.Height))

	res, err := a.locator().Locate(work)
	if err != nil {
		return store.SunRecord{}, fmt.Errorf("locating sun in %s: %w", path, err)
	}
	rot := lighting.ToRotation(res.Position.Longitude, res.Position.Latitude)

	rec := store.SunRecord{
		ImagePath: abs,
		Width:     work.Width,
		Height:    work.Height,
		PeakX:     res.Peak.X,
		PeakY:     res.Peak.Y,
		Longitude: res.Position.Longitude,
		Latitude:  res.Position.Latitude,
		RotX:      rot.X,
		RotY:      rot.Y,
		ZOrg:      rot.Z,
		Sigma:     a.cfg.Analysis.Sigma,
		Computed:  true,
	}

	if a.cfg.Preview.Enabled {
		preview := formats.PreviewPath(abs, a.cfg.Preview.Dir)
		if err := formats.Save(preview, work); err != nil {
			return store.SunRecord{}, fmt.Errorf("writing preview: %w", err)
		}
		rec.PreviewPath = preview
	}

	took := time.Since(start)
	if a.store != nil {
		if err := a.store.SaveSun(rec, took); err != nil {
			return store.SunRecord{}, err
		}
	}

	a.log.Info("sun located",
		zap.String("path", abs),
		zap.Float64("longitude", rec.Longitude),
		zap.Float64("latitude", rec.Latitude),
		zap.Float64("z_org", rec.ZOrg),
		zap.Duration("took", took))
	return rec, nil
}

func (a *App) report(rec store.SunRecord) {
	pos := sun.Position{Longitude: rec.Longitude, Latitude: rec.Latitude}
	fmt.Fprintf(a.out, "%s: sun at %s (pixel %d,%d)\n", rec.ImagePath, pos, rec.PeakX, rec.PeakY)
	fmt.Fprintf(a.out, "  rotation: x=%.6f y=%.6f z=%.6f\n", rec.RotX, rec.RotY, rec.ZOrg)
	if rec.PreviewPath != "" {
		fmt.Fprintf(a.out, "  preview: %s\n", rec.PreviewPath)
	}
}
