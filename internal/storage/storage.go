package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"metricindex/internal/models"
)

// Storage persists the term corpus, indexed images and query history. The
// BK-trees themselves are never stored; they are rebuilt from these rows.
type Storage struct {
	db     *sql.DB
	dbPath string
}

// NewStorage opens (creating if needed) the database at dbPath
func NewStorage(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Current schema version
const schemaVersion = 3

// migrations run in order on top of the base schema. Each one must be
// idempotent.
var migrations = []struct {
	version     int
	description string
	up          string
}{
	{
		version:     1,
		description: "Initial schema",
		up:          "", // base schema
	},
	{
		version:     2,
		description: "Add terms table for the dictionary corpus",
		up: `
			CREATE TABLE IF NOT EXISTS terms (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				term TEXT UNIQUE NOT NULL,
				source TEXT NOT NULL DEFAULT '',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		version:     3,
		description: "Add queries table for lookup history",
		up: `
			CREATE TABLE IF NOT EXISTS queries (
				id TEXT PRIMARY KEY,
				term TEXT NOT NULL,
				max_distance INTEGER NOT NULL,
				results INTEGER NOT NULL,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_queries_created_at ON queries(created_at);
		`,
	},
}

func (s *Storage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		hash INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		format TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		mod_time DATETIME NOT NULL,
		has_exif INTEGER DEFAULT 0,
		score REAL NOT NULL,
		group_id INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_images_hash ON images(hash);
	CREATE INDEX IF NOT EXISTS idx_images_group_id ON images(group_id);

	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder TEXT NOT NULL,
		scanned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		total_images INTEGER NOT NULL,
		total_groups INTEGER NOT NULL,
		total_duplicates INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *Storage) migrate() error {
	currentVersion := s.getSchemaVersion()

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if m.up != "" {
			if _, err := s.db.Exec(m.up); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
			}
		}
		if err := s.setSchemaVersion(m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}

	return nil
}

func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

func (s *Storage) setSchemaVersion(version int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
	return err
}

func (s *Storage) tableExists(table string) bool {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	return err == nil && count > 0
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveTerms stores terms that are not stored yet and returns how many were new
func (s *Storage) SaveTerms(terms []string, source string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO terms (term, source) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, term := range terms {
		res, err := stmt.Exec(term, source)
		if err != nil {
			return 0, fmt.Errorf("failed to insert term %q: %w", term, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit terms: %w", err)
	}
	return added, nil
}

// GetTerms returns every stored term in insertion order
func (s *Storage) GetTerms() ([]string, error) {
	rows, err := s.db.Query(`SELECT term FROM terms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// TermCount returns the number of stored terms
func (s *Storage) TermCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM terms`).Scan(&count)
	return count, err
}

// RecordQuery stores a lookup in the history under a fresh ID
func (s *Storage) RecordQuery(term string, maxDistance, results int) (*models.Query, error) {
	q := &models.Query{
		ID:          uuid.New().String(),
		Term:        term,
		MaxDistance: maxDistance,
		Results:     results,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO queries (id, term, max_distance, results, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, q.ID, q.Term, q.MaxDistance, q.Results, formatTime(q.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to record query: %w", err)
	}
	return q, nil
}

// RecentQueries returns up to limit queries, newest first
func (s *Storage) RecentQueries(limit int) ([]*models.Query, error) {
	rows, err := s.db.Query(`
		SELECT id, term, max_distance, results, created_at
		FROM queries
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var queries []*models.Query
	for rows.Next() {
		q := &models.Query{}
		var createdAt string
		if err := rows.Scan(&q.ID, &q.Term, &q.MaxDistance, &q.Results, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		q.CreatedAt = parseTime(createdAt)
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveImages saves or updates multiple images
func (s *Storage) SaveImages(images []*models.ImageInfo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO images (path, hash, width, height, format, file_size, mod_time, has_exif, score, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, img := range images {
		hasExifInt := 0
		if img.HasExif {
			hasExifInt = 1
		}
		// SQLite integers are signed; the hash round-trips through int64
		_, err := stmt.Exec(
			img.Path,
			int64(img.Hash),
			img.Width,
			img.Height,
			img.Format,
			img.FileSize,
			formatTime(img.ModTime),
			hasExifInt,
			img.Score,
			img.GroupID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert image %s: %w", img.Path, err)
		}
	}

	return tx.Commit()
}

const imageColumns = `id, path, hash, width, height, format, file_size, mod_time, has_exif, score, group_id`

// GetAllImages returns all stored images ordered by path
func (s *Storage) GetAllImages() ([]*models.ImageInfo, error) {
	return s.queryImages(`SELECT ` + imageColumns + ` FROM images ORDER BY path`)
}

// GetImagesByGroupID returns images in a group, best score first
func (s *Storage) GetImagesByGroupID(groupID int) ([]*models.ImageInfo, error) {
	return s.queryImages(`SELECT `+imageColumns+` FROM images WHERE group_id = ? ORDER BY score DESC, path`, groupID)
}

func (s *Storage) queryImages(query string, args ...any) ([]*models.ImageInfo, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []*models.ImageInfo
	for rows.Next() {
		img := &models.ImageInfo{}
		var modTime string
		var hashInt int64
		var hasExifInt int
		err := rows.Scan(
			&img.ID,
			&img.Path,
			&hashInt,
			&img.Width,
			&img.Height,
			&img.Format,
			&img.FileSize,
			&modTime,
			&hasExifInt,
			&img.Score,
			&img.GroupID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		img.Hash = uint64(hashInt)
		img.HasExif = hasExifInt == 1
		img.ModTime = parseTime(modTime)
		images = append(images, img)
	}

	return images, rows.Err()
}

// UpdateGroups replaces all group assignments with the given groups
func (s *Storage) UpdateGroups(groups []*models.DuplicateGroup) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE images SET group_id = 0"); err != nil {
		return fmt.Errorf("failed to reset groups: %w", err)
	}

	stmt, err := tx.Prepare("UPDATE images SET group_id = ? WHERE path = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, group := range groups {
		for _, img := range group.Images {
			if _, err := stmt.Exec(group.ID, img.Path); err != nil {
				return fmt.Errorf("failed to update group for %s: %w", img.Path, err)
			}
		}
	}

	return tx.Commit()
}

// RecordScan records an image scan in history
func (s *Storage) RecordScan(folder string, totalImages, totalGroups, totalDuplicates int) error {
	_, err := s.db.Exec(`
		INSERT INTO scan_history (folder, total_images, total_groups, total_duplicates)
		VALUES (?, ?, ?, ?)
	`, folder, totalImages, totalGroups, totalDuplicates)
	return err
}

// GetGroupCount returns the number of duplicate image groups
func (s *Storage) GetGroupCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(DISTINCT group_id) FROM images WHERE group_id > 0").Scan(&count)
	return count, err
}

// GetDuplicateGroups returns all duplicate image groups with their images
func (s *Storage) GetDuplicateGroups() ([]*models.DuplicateGroup, error) {
	rows, err := s.db.Query("SELECT DISTINCT group_id FROM images WHERE group_id > 0 ORDER BY group_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}

	var groupIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var groups []*models.DuplicateGroup
	for _, id := range groupIDs {
		images, err := s.GetImagesByGroupID(id)
		if err != nil {
			return nil, err
		}
		if len(images) < 2 {
			continue
		}

		groups = append(groups, &models.DuplicateGroup{
			ID:     id,
			Images: images,
			Keep:   images[0], // sorted by score DESC
			Remove: images[1:],
		})
	}

	return groups, nil
}

// Times are stored as fixed-width RFC 3339 text in UTC so that they sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
