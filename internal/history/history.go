// Package history persists the learning history record.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hong8300/onpu-yomail/internal/model"
	"github.com/hong8300/onpu-yomail/internal/stats"
	"github.com/hong8300/onpu-yomail/internal/store"
)

const storageKey = "onpu-learning-history"

// ErrInvalidFormat rejects imports that fail structural validation.
// Existing state is left untouched.
var ErrInvalidFormat = errors.New("invalid history format")

// Service owns the persisted history record. The aggregate is always
// recomputed from the full session log, never patched.
type Service struct {
	kv  store.KV
	now func() time.Time
}

// New builds a history service over the given store.
func New(kv store.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

// NewWithNow injects the time source, for tests.
func NewWithNow(kv store.KV, now func() time.Time) *Service {
	return &Service{kv: kv, now: now}
}

// Default returns the empty history record.
func (s *Service) Default() model.LearningHistory {
	return model.LearningHistory{
		Sessions:     []model.Session{},
		OverallStats: stats.Aggregate(nil, s.now()),
		LastUpdated:  s.now(),
	}
}

// Load reads the record; an absent key yields the empty default. Dates
// come back revived from their ISO-8601 forms.
func (s *Service) Load(ctx context.Context) (model.LearningHistory, error) {
	raw, ok, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		return model.LearningHistory{}, fmt.Errorf("load history: %w", err)
	}
	if !ok {
		return s.Default(), nil
	}
	var h model.LearningHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		return model.LearningHistory{}, fmt.Errorf("decode history: %w", err)
	}
	if h.Sessions == nil {
		h.Sessions = []model.Session{}
	}
	return h, nil
}

// Save writes the record.
func (s *Service) Save(ctx context.Context, h model.LearningHistory) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey, raw); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Add appends a sealed session, scoring it if needed, recomputes the
// aggregate over the full log, and persists the result.
func (s *Service) Add(ctx context.Context, session model.Session) (model.LearningHistory, error) {
	h, err := s.Load(ctx)
	if err != nil {
		return model.LearningHistory{}, err
	}
	if session.Results == nil {
		result := stats.ScoreSession(session)
		session.Results = &result
	}
	h.Sessions = append(h.Sessions, session)
	h.OverallStats = stats.Aggregate(h.Sessions, s.now())
	h.LastUpdated = s.now()
	if err := s.Save(ctx, h); err != nil {
		return model.LearningHistory{}, err
	}
	return h, nil
}

// Clear resets the record to the empty default.
func (s *Service) Clear(ctx context.Context) error {
	return s.Save(ctx, s.Default())
}

// Recent returns up to limit sessions, most recent first.
func Recent(h model.LearningHistory, limit int) []model.Session {
	sessions := append([]model.Session(nil), h.Sessions...)
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}

// ByDateRange returns sessions whose start time falls in [start, end].
func ByDateRange(h model.LearningHistory, start, end time.Time) []model.Session {
	var out []model.Session
	for _, session := range h.Sessions {
		if session.StartTime.Before(start) || session.StartTime.After(end) {
			continue
		}
		out = append(out, session)
	}
	return out
}

// Export serializes the record for download, named with the current
// date.
func (s *Service) Export(h model.LearningHistory) (filename string, data []byte, err error) {
	data, err = json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode history: %w", err)
	}
	return fmt.Sprintf("onpu-history-%s.json", s.now().Format("2006-01-02")), data, nil
}

// Import validates and installs an exported record. The top level must
// carry both sessions and overallStats; structural mismatch fails with
// ErrInvalidFormat and no mutation.
func (s *Service) Import(ctx context.Context, data []byte) (model.LearningHistory, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return model.LearningHistory{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if _, ok := shape["sessions"]; !ok {
		return model.LearningHistory{}, fmt.Errorf("%w: missing sessions", ErrInvalidFormat)
	}
	if _, ok := shape["overallStats"]; !ok {
		return model.LearningHistory{}, fmt.Errorf("%w: missing overallStats", ErrInvalidFormat)
	}
	var h model.LearningHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return model.LearningHistory{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if h.Sessions == nil {
		h.Sessions = []model.Session{}
	}
	h.LastUpdated = s.now()
	if err := s.Save(ctx, h); err != nil {
		return model.LearningHistory{}, err
	}
	return h, nil
}
