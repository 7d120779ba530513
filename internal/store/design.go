package store

import (
	"database/sql"
	"errors"
	"time"
)

// Design is an overlay image stored in the library. Data holds the
// normalized PNG bytes.
type Design struct {
	ID        string
	Name      string
	MIME      string
	Width     int
	Height    int
	Data      []byte
	CreatedAt time.Time
}

// DesignRepository provides CRUD operations for designs.
type DesignRepository struct {
	db *sql.DB
}

// Designs returns the design repository for this store.
func (s *Store) Designs() *DesignRepository {
	return &DesignRepository{db: s.db}
}

// Create inserts a new design into the database.
func (r *DesignRepository) Create(d *Design) error {
	d.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO designs (id, name, mime, width, height, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.MIME, d.Width, d.Height, d.Data, d.CreatedAt,
	)
	return err
}

// GetByID retrieves a design, including its image data, by ID.
func (r *DesignRepository) GetByID(id string) (*Design, error) {
	d := &Design{}

	err := r.db.QueryRow(
		`SELECT id, name, mime, width, height, data, created_at
		 FROM designs WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.Name, &d.MIME, &d.Width, &d.Height, &d.Data, &d.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return d, nil
}

// List retrieves all designs, newest first. Image data is not loaded.
func (r *DesignRepository) List() ([]*Design, error) {
	rows, err := r.db.Query(
		`SELECT id, name, mime, width, height, created_at
		 FROM designs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var designs []*Design
	for rows.Next() {
		d := &Design{}
		if err := rows.Scan(&d.ID, &d.Name, &d.MIME, &d.Width, &d.Height, &d.CreatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return designs, nil
}

// Delete removes a design by ID.
func (r *DesignRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM designs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
