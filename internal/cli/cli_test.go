package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/sunalign/internal/config"
	"github.com/Faultbox/sunalign/internal/store"
	"github.com/Faultbox/sunalign/pkg/lighting"
)

// isolate points the config directory at a temp dir so a user's real config
// and database are never touched.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("HOME", dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), args, &out)
	return out.String(), err
}

// writeSky writes a black 40x20 PNG with one white pixel at image (30, 5),
// which is bottom-up row 14: longitude 90, latitude 36.
func writeSky(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	img.SetNRGBA(30, 5, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	path := filepath.Join(dir, "sky.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRotate(t *testing.T) {
	isolate(t)

	out, err := run(t, "rotate", "90", "0")
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if !strings.Contains(out, "rotation: x=1.570796") {
		t.Errorf("expected quarter turn about X, got %q", out)
	}
	if !strings.Contains(out, "quaternion: w=0.707107 x=0.707107") {
		t.Errorf("expected quaternion line, got %q", out)
	}

	out, err = run(t, "rotate", "--degrees", "90", "0")
	if err != nil {
		t.Fatalf("rotate --degrees failed: %v", err)
	}
	if !strings.Contains(out, "rotation: x=90.000000") {
		t.Errorf("expected degrees output, got %q", out)
	}
}

func TestRotateRejectsBadArgs(t *testing.T) {
	isolate(t)

	for _, args := range [][]string{
		{"rotate", "abc", "0"},
		{"rotate", "0", "NaN"},
		{"rotate", "0", "91"},
		{"rotate", "0"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestLocateStoresResult(t *testing.T) {
	dir := isolate(t)
	sky := writeSky(t, dir)
	db := filepath.Join(dir, "results.db")
	previews := filepath.Join(dir, "previews")

	out, err := run(t, "locate", "--db", db, "--preview-dir", previews, sky)
	if err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	if !strings.Contains(out, "lon=90.0000 lat=36.0000") {
		t.Errorf("unexpected position in %q", out)
	}
	if !strings.Contains(out, "(pixel 30,14)") {
		t.Errorf("unexpected pixel in %q", out)
	}

	preview := filepath.Join(previews, "sky_sun_preview.png")
	if _, err := os.Stat(preview); err != nil {
		t.Errorf("preview not written: %v", err)
	}

	s, err := store.New(db)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec, err := s.Sun(sky)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	want := lighting.ToRotation(90, 36)
	if !rec.Computed || rec.Longitude != 90 || rec.Latitude != 36 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.ZOrg != want.Z || rec.RotX != want.X || rec.RotY != want.Y {
		t.Errorf("stored rotation = (%v, %v, %v), want %+v", rec.RotX, rec.RotY, rec.ZOrg, want)
	}
	if rec.PreviewPath != preview {
		t.Errorf("preview path = %q, want %q", rec.PreviewPath, preview)
	}
}

func TestLocateDirectoryWithoutStore(t *testing.T) {
	dir := isolate(t)
	writeSky(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "locate", "--no-store", "--no-preview", dir)
	if err != nil {
		t.Fatalf("locate failed: %v", err)
	}
	if strings.Count(out, "sun at") != 1 {
		t.Errorf("expected one result, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "sky_sun_preview.png")); !os.IsNotExist(err) {
		t.Errorf("preview should not be written with --no-preview")
	}
}

func TestLocateErrors(t *testing.T) {
	dir := isolate(t)

	if _, err := run(t, "locate", "--no-store", filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "locate", "--no-store", bad); err == nil {
		t.Error("expected error for undecodable file")
	}
}

func TestTrackAndHistory(t *testing.T) {
	dir := isolate(t)
	sky := writeSky(t, dir)
	db := filepath.Join(dir, "results.db")

	if _, err := run(t, "locate", "--db", db, "--no-preview", sky); err != nil {
		t.Fatalf("locate failed: %v", err)
	}

	out, err := run(t, "track", "--db", db, "--mapping-z", "0.5", sky)
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	base := lighting.ToRotation(90, 36)
	want := fmt.Sprintf("z=%.6f\n", lighting.DriverZ(base.Z, 0.5))
	if !strings.Contains(out, want) {
		t.Errorf("expected %q in %q", want, out)
	}

	out, err = run(t, "track", "--db", db, "--set-baseline", "1", "--mapping-z", "0.25", sky)
	if err != nil {
		t.Fatalf("track --set-baseline failed: %v", err)
	}
	if !strings.Contains(out, "z=0.750000\n") {
		t.Errorf("expected rebased z in %q", out)
	}

	out, err = run(t, "history", "--db", db)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, sky) || !strings.Contains(out, "90.0000") {
		t.Errorf("history missing run: %q", out)
	}
}

func TestTrackRequiresStore(t *testing.T) {
	dir := isolate(t)

	if _, err := run(t, "track", "--no-store", filepath.Join(dir, "sky.png")); err == nil {
		t.Error("expected error with store disabled")
	}
	if _, err := run(t, "track", "--db", filepath.Join(dir, "empty.db"), filepath.Join(dir, "sky.png")); err == nil {
		t.Error("expected error for an image never located")
	}
}

func TestConfigShowAndSave(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "sigma: 100") {
		t.Errorf("expected default sigma in %q", out)
	}

	path := filepath.Join(dir, "saved.yaml")
	if _, err := run(t, "config", "save", "-o", path); err != nil {
		t.Fatalf("config save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "max_width: 1024") {
		t.Errorf("saved config missing preview width: %s", data)
	}
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "sunalign "+Version) {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestLocateRejectsNegativeSigma(t *testing.T) {
	dir := isolate(t)
	sky := writeSky(t, dir)

	_, err := run(t, "locate", "--no-store", "--no-preview", "--sigma", "-1", sky)
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected invalid config error, got %v", err)
	}
}

func TestWatchInitialScan(t *testing.T) {
	dir := isolate(t)
	writeSky(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := Run(ctx, []string{"watch", "--initial", "--no-store", "--no-preview", dir}, &out)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !strings.Contains(out.String(), "lon=90.0000 lat=36.0000") {
		t.Errorf("expected the existing image to be located, got %q", out.String())
	}
}

func TestWatchInitialScanLogsEmptyDir(t *testing.T) {
	dir := isolate(t)
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0755); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(dir, "sunalign.log")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	if err := Run(ctx, []string{"watch", "--initial", "--no-store", "--log-file", logFile, empty}, &out); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"initial scan"`) {
		t.Errorf("expected the scan failure to be logged, got %s", data)
	}
}
