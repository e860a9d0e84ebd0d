package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("not found")

// Store handles persistence of the label index to SQLite.
type Store struct {
	db      *sql.DB
	dbPath  string
	baseDir string // Project root directory
}

// Path returns the database path Open uses for projectDir and storeDir.
// A relative storeDir is taken relative to projectDir.
func Path(projectDir, storeDir string) string {
	if !filepath.IsAbs(storeDir) {
		storeDir = filepath.Join(projectDir, storeDir)
	}
	return filepath.Join(storeDir, "index.db")
}

// Open creates or opens a label index database at storeDir/index.db.
func Open(projectDir, storeDir string) (*Store, error) {
	dbPath := Path(projectDir, storeDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:      db,
		dbPath:  dbPath,
		baseDir: projectDir,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// Clear removes all data from the database (for re-indexing).
func (s *Store) Clear() error {
	tables := []string{"attachments", "labels", "packages", "metadata"}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

// SetMetadata stores a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// Stats holds statistics about the indexed data.
type Stats struct {
	PackageCount    int       `json:"package_count"`
	LabelCount      int       `json:"label_count"`
	AttachmentCount int       `json:"attachment_count"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// GetStats returns statistics about the indexed data.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		table string
		dest  *int
	}{
		{"packages", &stats.PackageCount},
		{"labels", &stats.LabelCount},
		{"attachments", &stats.AttachmentCount},
	}

	for _, r := range rows {
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + r.table).Scan(r.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.table, err)
		}
	}

	if ts, err := s.GetMetadata("indexed_at"); err == nil {
		stats.IndexedAt, _ = time.Parse(time.RFC3339, ts)
	}

	return stats, nil
}

// Labels returns every label with its attachment count, ordered by package and name.
func (s *Store) Labels() ([]LabelSummary, error) {
	rows, err := s.db.Query(`
		SELECT l.id, l.pkg_path, l.name, l.kind, l.signature, l.file, l.line, COUNT(a.id)
		FROM labels l
		LEFT JOIN attachments a ON a.label_id = l.id
		GROUP BY l.id
		ORDER BY l.pkg_path, l.name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()

	var labels []LabelSummary
	for rows.Next() {
		var l LabelSummary
		if err := rows.Scan(&l.ID, &l.PkgPath, &l.Name, &l.Kind, &l.Signature, &l.File, &l.Line, &l.AttachmentCount); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Label returns the label with the given ID, or ErrNotFound.
func (s *Store) Label(id LabelID) (*LabelSummary, error) {
	var l LabelSummary
	err := s.db.QueryRow(`
		SELECT l.id, l.pkg_path, l.name, l.kind, l.signature, l.file, l.line, COUNT(a.id)
		FROM labels l
		LEFT JOIN attachments a ON a.label_id = l.id
		WHERE l.id = ?
		GROUP BY l.id
	`, id).Scan(&l.ID, &l.PkgPath, &l.Name, &l.Kind, &l.Signature, &l.File, &l.Line, &l.AttachmentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("label %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying label %d: %w", id, err)
	}
	return &l, nil
}

// Attachments returns the items attached to a label in registration order.
func (s *Store) Attachments(id LabelID) ([]Attachment, error) {
	rows, err := s.db.Query(`
		SELECT label_id, pkg_path, item, item_kind, path, file, line
		FROM attachments
		WHERE label_id = ?
		ORDER BY pkg_path, file, line, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var atts []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.LabelID, &a.PkgPath, &a.Item, &a.ItemKind, &a.Path, &a.File, &a.Line); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

// IndexMetadata holds the summary written to index.json.
type IndexMetadata struct {
	Version         string    `json:"version"`
	ProjectPath     string    `json:"project_path"`
	IndexedAt       time.Time `json:"indexed_at"`
	PackageCount    int       `json:"package_count"`
	LabelCount      int       `json:"label_count"`
	AttachmentCount int       `json:"attachment_count"`
	Labels          []string  `json:"labels"` // Qualified label names, pkg.Name
}

// WriteIndexJSON writes index.json next to the database.
func (s *Store) WriteIndexJSON() error {
	stats, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	labels, err := s.Labels()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.PkgPath+"."+l.Name)
	}

	meta := &IndexMetadata{
		Version:         "1",
		ProjectPath:     s.baseDir,
		IndexedAt:       stats.IndexedAt,
		PackageCount:    stats.PackageCount,
		LabelCount:      stats.LabelCount,
		AttachmentCount: stats.AttachmentCount,
		Labels:          names,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index.json: %w", err)
	}

	indexPath := filepath.Join(filepath.Dir(s.dbPath), "index.json")
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("writing index.json: %w", err)
	}

	return nil
}

// BeginBatch starts a transaction for batch inserts.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	tx *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// InsertPackage inserts a package within the batch.
func (b *BatchTx) InsertPackage(pkg *Package) error {
	_, err := b.tx.Exec(`
		INSERT INTO packages (pkg_path, name, module, dir, is_main)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pkg_path) DO UPDATE SET
			name = excluded.name,
			module = excluded.module,
			dir = excluded.dir,
			is_main = excluded.is_main
	`, pkg.PkgPath, pkg.Name, pkg.Module, pkg.Dir, pkg.IsMain)
	return err
}

// InsertLabel inserts a label within the batch and returns its ID.
func (b *BatchTx) InsertLabel(l *Label) (LabelID, error) {
	result, err := b.tx.Exec(`
		INSERT INTO labels (pkg_path, name, kind, signature, file, line)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.PkgPath, l.Name, l.Kind, l.Signature, l.File, l.Line)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return LabelID(id), nil
}

// InsertAttachment inserts an attachment within the batch.
func (b *BatchTx) InsertAttachment(a *Attachment) error {
	_, err := b.tx.Exec(`
		INSERT INTO attachments (label_id, pkg_path, item, item_kind, path, file, line)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.LabelID, a.PkgPath, a.Item, a.ItemKind, a.Path, a.File, a.Line)
	return err
}

// SetMetadata stores a key-value pair within the batch.
func (b *BatchTx) SetMetadata(key, value string) error {
	_, err := b.tx.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
