package store

import (
	"database/sql"
	"errors"

	"github.com/ayusman/formcoach/internal/exercise"
)

// SettingsRepository stores application settings as key-value pairs.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (r *SettingsRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func defaultProfileKey(kind exercise.Kind) string {
	return "default_profile." + string(kind)
}

// DefaultProfile returns the profile used for new sessions of kind when the
// caller names none.
func (s *Store) DefaultProfile(kind exercise.Kind) (*Profile, error) {
	id, err := s.Settings().Get(defaultProfileKey(kind))
	if err != nil {
		return nil, err
	}
	return s.Profiles().GetByID(id)
}

// SetDefaultProfile makes p the default profile for its exercise.
func (s *Store) SetDefaultProfile(p *Profile) error {
	return s.Settings().Set(defaultProfileKey(p.Exercise), p.ID)
}
