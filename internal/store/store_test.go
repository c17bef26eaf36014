package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "sunalign.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadSun(t *testing.T) {
	s := newTestStore(t)

	rec := SunRecord{
		ImagePath:   "/hdri/sky.hdr",
		Width:       1024,
		Height:      512,
		PeakX:       768,
		PeakY:       102,
		Longitude:   90,
		Latitude:    -54.140625,
		RotX:        0.25,
		RotY:        -1.5,
		ZOrg:        -1.5707963267948966,
		Sigma:       100,
		PreviewPath: "/hdri/sky_sun_preview.png",
		Computed:    true,
		UpdatedAt:   time.Unix(1700000000, 123),
	}
	if err := s.SaveSun(rec, 1500*time.Millisecond); err != nil {
		t.Fatalf("SaveSun failed: %v", err)
	}

	got, err := s.Sun("/hdri/sky.hdr")
	if err != nil {
		t.Fatalf("Sun failed: %v", err)
	}
	if !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("expected time %v, got %v", rec.UpdatedAt, got.UpdatedAt)
	}
	got.UpdatedAt = rec.UpdatedAt
	if got != rec {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestSaveSunReplaces(t *testing.T) {
	s := newTestStore(t)

	first := SunRecord{ImagePath: "a.hdr", Longitude: 10, Computed: true}
	second := SunRecord{ImagePath: "a.hdr", Longitude: 20, Computed: true}
	if err := s.SaveSun(first, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSun(second, 0); err != nil {
		t.Fatal(err)
	}

	got, err := s.Sun("a.hdr")
	if err != nil {
		t.Fatal(err)
	}
	if got.Longitude != 20 {
		t.Errorf("expected latest longitude 20, got %v", got.Longitude)
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestSunNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Sun("missing.hdr"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetBaseline("missing.hdr", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetBaseline(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveSun(SunRecord{ImagePath: "b.hdr", ZOrg: 0.5, Computed: true}, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseline("b.hdr", -0.75); err != nil {
		t.Fatalf("SetBaseline failed: %v", err)
	}

	got, err := s.Sun("b.hdr")
	if err != nil {
		t.Fatal(err)
	}
	if got.ZOrg != -0.75 {
		t.Errorf("expected baseline -0.75, got %v", got.ZOrg)
	}
}

func TestRecentRunsOrder(t *testing.T) {
	s := newTestStore(t)

	base := time.Unix(1700000000, 0)
	for i, name := range []string{"one.hdr", "two.hdr", "three.hdr"} {
		rec := SunRecord{ImagePath: name, Longitude: float64(i), UpdatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveSun(rec, time.Duration(i+1)*time.Second); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ImagePath != "three.hdr" || runs[1].ImagePath != "two.hdr" {
		t.Errorf("unexpected order: %s, %s", runs[0].ImagePath, runs[1].ImagePath)
	}
	if runs[0].Duration != 3*time.Second {
		t.Errorf("expected duration 3s, got %v", runs[0].Duration)
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if err := s.SaveSun(SunRecord{ImagePath: "m.hdr"}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sun("m.hdr"); err != nil {
		t.Errorf("Sun failed: %v", err)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if err := s.SaveSun(SunRecord{ImagePath: "x"}, 0); err != nil {
		t.Errorf("nil store SaveSun should be a no-op, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil store Close should be a no-op, got %v", err)
	}
	if _, err := s.Sun("x"); err == nil {
		t.Error("expected error from nil store")
	}
}
