package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"chatbot-relay/pkg/models"
)

// SettingsStore persists the user's local settings between sessions, the
// terminal-client analog of the widget's browser storage.
type SettingsStore interface {
	Load() (*Settings, error)
	Save(Settings) error
}

// FileStore keeps settings as JSON in a single file.
type FileStore struct {
	Path string
}

// Load returns the stored settings, or (nil, nil) when none exist yet.
func (s *FileStore) Load() (*Settings, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save writes the settings.
func (s *FileStore) Save(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o600)
}

// PersistLocal saves settings only when no credential claim governs them:
// credential-sourced settings are not user-overridable and never persisted.
func PersistLocal(store SettingsStore, claim *models.AccessClaim, settings Settings) error {
	if claim != nil {
		return nil
	}
	return store.Save(settings)
}
