// Package settings persists the application settings record.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hong8300/onpu-yomail/internal/model"
	"github.com/hong8300/onpu-yomail/internal/store"
)

const storageKey = "onpu-app-settings"

// ErrInvalidFormat rejects imports that are not a JSON object.
var ErrInvalidFormat = errors.New("invalid settings format")

// Defaults returns the factory settings.
func Defaults() model.AppSettings {
	return model.AppSettings{
		Practice: model.PracticeSettings{
			TotalQuestions:    12,
			NoteRange:         model.NoteRange{Min: "C3", Max: "C5"},
			Difficulty:        model.DifficultyMedium,
			EnableMidi:        true,
			EnableMouse:       true,
			AutoAdvance:       true,
			AutoAdvanceDelay:  1500,
			EnableAccidentals: false,
		},
		Display: model.DisplaySettings{
			Theme:         "system",
			StaffSize:     "medium",
			ShowDebugInfo: false,
		},
	}
}

// rangePresets are the built-in note range shortcuts. Anything else is
// a custom range spelled out note by note.
var rangePresets = map[string]model.NoteRange{
	"beginner":     {Min: "C4", Max: "C5"},
	"intermediate": {Min: "C3", Max: "C6"},
}

// RangePreset resolves a named note range shortcut.
func RangePreset(name string) (model.NoteRange, bool) {
	r, ok := rangePresets[name]
	return r, ok
}

// RangePresetNames lists the preset names in a stable order.
func RangePresetNames() []string {
	return []string{"beginner", "intermediate"}
}

// Service owns the persisted settings record.
type Service struct {
	kv  store.KV
	now func() time.Time
}

// New builds a settings service over the given store.
func New(kv store.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

// NewWithNow injects the time source, for tests.
func NewWithNow(kv store.KV, now func() time.Time) *Service {
	return &Service{kv: kv, now: now}
}

// Load merges the stored record field-by-field over the defaults, so
// partially-written or older records remain valid. An absent key yields
// the defaults.
func (s *Service) Load(ctx context.Context) (model.AppSettings, error) {
	raw, ok, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		return model.AppSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}
	merged := Defaults()
	if err := json.Unmarshal(raw, &merged); err != nil {
		return model.AppSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return merged, nil
}

// Save writes the record.
func (s *Service) Save(ctx context.Context, settings model.AppSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey, raw); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Reset restores the defaults.
func (s *Service) Reset(ctx context.Context) error {
	return s.Save(ctx, Defaults())
}

// Export serializes the record for download, named with the current
// date.
func (s *Service) Export(settings model.AppSettings) (filename string, data []byte, err error) {
	data, err = json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode settings: %w", err)
	}
	return fmt.Sprintf("onpu-settings-%s.json", s.now().Format("2006-01-02")), data, nil
}

// Import validates and installs an exported record, merged over the
// defaults. A non-object fails with ErrInvalidFormat and no mutation.
func (s *Service) Import(ctx context.Context, data []byte) (model.AppSettings, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return model.AppSettings{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	// JSON null unmarshals into a nil map without error.
	if shape == nil {
		return model.AppSettings{}, fmt.Errorf("%w: not an object", ErrInvalidFormat)
	}
	merged := Defaults()
	if err := json.Unmarshal(data, &merged); err != nil {
		return model.AppSettings{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := s.Save(ctx, merged); err != nil {
		return model.AppSettings{}, err
	}
	return merged, nil
}
