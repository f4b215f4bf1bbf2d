package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/averol/gohls/internal/domain"
)

func (s *PersistentStore) SaveDownload(d *domain.Download) error {
	var progressJSON []byte
	if d.Progress != nil {
		var err error
		progressJSON, err = json.Marshal(d.Progress)
		if err != nil {
			return fmt.Errorf("failed to encode progress: %w", err)
		}
	}

	query := `INSERT OR REPLACE INTO downloads
              (id, title, quality, manifest_url, output_path, status, progress_json, error, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		d.ID,
		d.Title,
		d.Quality,
		d.ManifestURL,
		d.OutputPath,
		string(d.Status),
		string(progressJSON),
		d.Error,
		d.CreatedAt,
		d.UpdatedAt,
	)
	return err
}

func (s *PersistentStore) GetDownload(id string) (*domain.Download, error) {
	query := `SELECT id, title, quality, manifest_url, output_path, status, progress_json, error, created_at, updated_at
              FROM downloads WHERE id = ? LIMIT 1`

	d, err := scanDownload(s.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("failed to fetch download: %w", err)
	}
	return d, nil
}

// ListDownloads returns every record ordered by ID. IDs are ksuids, so the
// order is chronological.
func (s *PersistentStore) ListDownloads() ([]*domain.Download, error) {
	query := `SELECT id, title, quality, manifest_url, output_path, status, progress_json, error, created_at, updated_at
              FROM downloads ORDER BY id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (s *PersistentStore) DeleteDownload(id string) error {
	_, err := s.db.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	return err
}

// MarkInterrupted flips downloads a dead process left mid-flight to
// interrupted. Run once at startup; their caches stay resumable.
func (s *PersistentStore) MarkInterrupted() (int, error) {
	res, err := s.db.Exec(
		`UPDATE downloads SET status = ? WHERE status IN (?, ?, ?)`,
		string(domain.StatusInterrupted),
		string(domain.StatusPending),
		string(domain.StatusDownloading),
		string(domain.StatusMerging),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDownload(row rowScanner) (*domain.Download, error) {
	d := &domain.Download{}
	var status, progressJSON string

	err := row.Scan(&d.ID, &d.Title, &d.Quality, &d.ManifestURL, &d.OutputPath,
		&status, &progressJSON, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.Status = domain.Status(status)
	if progressJSON != "" {
		var p domain.Progress
		if err := json.Unmarshal([]byte(progressJSON), &p); err == nil {
			d.Progress = &p
		}
	}
	return d, nil
}
