// Package store persists located sun positions per panorama in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no position has been stored for an image.
var ErrNotFound = errors.New("no sun position stored for image")

// Store wraps SQLite-backed persistence for sun positions.
type Store struct {
	DB *sql.DB
}

// New opens (or creates) the database at path and ensures schema.
// ":memory:" opens a private in-memory database.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS sun_positions (
            image_path TEXT PRIMARY KEY,
            width INTEGER NOT NULL,
            height INTEGER NOT NULL,
            peak_x INTEGER NOT NULL,
            peak_y INTEGER NOT NULL,
            longitude REAL NOT NULL,
            latitude REAL NOT NULL,
            rot_x REAL NOT NULL,
            rot_y REAL NOT NULL,
            z_org REAL NOT NULL,
            sigma REAL NOT NULL,
            preview_path TEXT,
            computed BOOLEAN NOT NULL DEFAULT FALSE,
            updated_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS analysis_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            image_path TEXT NOT NULL,
            longitude REAL NOT NULL,
            latitude REAL NOT NULL,
            z_org REAL NOT NULL,
            duration_ms INTEGER NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_image_path ON analysis_runs(image_path);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// SunRecord is the stored analysis result of one panorama.
type SunRecord struct {
	ImagePath   string
	Width       int
	Height      int
	PeakX       int
	PeakY       int
	Longitude   float64
	Latitude    float64
	RotX        float64
	RotY        float64
	ZOrg        float64 // Z rotation at analysis time, the driver baseline
	Sigma       float64
	PreviewPath string
	Computed    bool
	UpdatedAt   time.Time
}

// Run is one entry of the analysis history.
type Run struct {
	ID        int64
	ImagePath string
	Longitude float64
	Latitude  float64
	ZOrg      float64
	Duration  time.Duration
	CreatedAt time.Time
}

// SaveSun stores rec as the current position of its image and appends a run
// to the history. A zero UpdatedAt is replaced with the current time.
func (s *Store) SaveSun(rec SunRecord, took time.Duration) error {
	if s == nil {
		return nil
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO sun_positions (image_path, width, height, peak_x, peak_y, longitude, latitude, rot_x, rot_y, z_org, sigma, preview_path, computed, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.ImagePath, rec.Width, rec.Height, rec.PeakX, rec.PeakY, rec.Longitude, rec.Latitude,
		rec.RotX, rec.RotY, rec.ZOrg, rec.Sigma, rec.PreviewPath, rec.Computed, rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving sun position: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO analysis_runs (image_path, longitude, latitude, z_org, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.ImagePath, rec.Longitude, rec.Latitude, rec.ZOrg, took.Milliseconds(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	return tx.Commit()
}

// Sun returns the stored position for imagePath.
func (s *Store) Sun(imagePath string) (SunRecord, error) {
	if s == nil {
		return SunRecord{}, errors.New("store not initialized")
	}

	var rec SunRecord
	var preview sql.NullString
	var updated int64
	err := s.DB.QueryRow(`SELECT image_path, width, height, peak_x, peak_y, longitude, latitude, rot_x, rot_y, z_org, sigma, preview_path, computed, updated_at
        FROM sun_positions WHERE image_path=?;`, imagePath).Scan(
		&rec.ImagePath, &rec.Width, &rec.Height, &rec.PeakX, &rec.PeakY, &rec.Longitude, &rec.Latitude,
		&rec.RotX, &rec.RotY, &rec.ZOrg, &rec.Sigma, &preview, &rec.Computed, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return SunRecord{}, fmt.Errorf("%w: %s", ErrNotFound, imagePath)
	}
	if err != nil {
		return SunRecord{}, err
	}
	rec.PreviewPath = preview.String
	rec.UpdatedAt = time.Unix(0, updated)
	return rec, nil
}

// SetBaseline overwrites the stored driver baseline of an image.
func (s *Store) SetBaseline(imagePath string, zOrg float64) error {
	if s == nil {
		return nil
	}
	res, err := s.DB.Exec(`UPDATE sun_positions SET z_org=?, updated_at=? WHERE image_path=?;`, zOrg, time.Now().UnixNano(), imagePath)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, imagePath)
	}
	return nil
}

// RecentRuns returns the latest analysis runs up to limit, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, image_path, longitude, latitude, z_org, duration_ms, created_at FROM analysis_runs ORDER BY created_at DESC, id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ms, created int64
		if err := rows.Scan(&r.ID, &r.ImagePath, &r.Longitude, &r.Latitude, &r.ZOrg, &ms, &created); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
