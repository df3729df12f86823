package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
	"studio/internal/storage"
)

// PreferenceStore persists the two editor preference keys across sessions.
type PreferenceStore interface {
	Load(ctx context.Context) (domain.Preferences, error)
	Save(ctx context.Context, prefs domain.Preferences) error
}

// PreferencesPG implements PreferenceStore backed by PostgreSQL.
type PreferencesPG struct {
	sql infra.SQLExecutor
}

// NewPreferencesPG creates a PostgreSQL-backed preference store.
func NewPreferencesPG(sql infra.SQLExecutor) *PreferencesPG {
	return &PreferencesPG{sql: sql}
}

// Load reads both preference keys. Missing keys load as empty values.
func (r *PreferencesPG) Load(ctx context.Context) (domain.Preferences, error) {
	var prefs domain.Preferences
	instruction, err := r.loadKey(ctx, domain.PrefKeyInstruction)
	if err != nil {
		return domain.Preferences{}, err
	}
	aspect, err := r.loadKey(ctx, domain.PrefKeyAspectRatio)
	if err != nil {
		return domain.Preferences{}, err
	}
	prefs.Instruction = instruction
	prefs.AspectRatio = aspect
	return prefs, nil
}

// Save upserts both preference keys.
func (r *PreferencesPG) Save(ctx context.Context, prefs domain.Preferences) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertPreference, domain.PrefKeyInstruction, prefs.Instruction); err != nil {
		return fmt.Errorf("save preference %s: %w", domain.PrefKeyInstruction, err)
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertPreference, domain.PrefKeyAspectRatio, prefs.AspectRatio); err != nil {
		return fmt.Errorf("save preference %s: %w", domain.PrefKeyAspectRatio, err)
	}
	return nil
}

func (r *PreferencesPG) loadKey(ctx context.Context, key string) (string, error) {
	var value string
	err := r.sql.QueryRow(ctx, sqlinline.QSelectPreference, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load preference %s: %w", key, err)
	}
	return value, nil
}

const prefsFileKey = "preferences.json"

// PreferencesFile implements PreferenceStore on top of the local FileStore.
// It is the fallback when no database is configured.
type PreferencesFile struct {
	store *storage.FileStore
}

// NewPreferencesFile creates a file-backed preference store.
func NewPreferencesFile(store *storage.FileStore) *PreferencesFile {
	return &PreferencesFile{store: store}
}

// Load reads the preference document; a missing file loads as empty values.
func (r *PreferencesFile) Load(ctx context.Context) (domain.Preferences, error) {
	data, err := r.store.Read(ctx, prefsFileKey)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Preferences{}, nil
	}
	if err != nil {
		return domain.Preferences{}, err
	}
	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return domain.Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

// Save writes the preference document.
func (r *PreferencesFile) Save(ctx context.Context, prefs domain.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = r.store.Write(ctx, prefsFileKey, data)
	return err
}

var (
	_ PreferenceStore = (*PreferencesPG)(nil)
	_ PreferenceStore = (*PreferencesFile)(nil)
)
