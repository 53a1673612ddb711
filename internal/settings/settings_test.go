package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hong8300/onpu-yomail/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	return NewWithNow(store.NewMemory(), func() time.Time { return testNow })
}

func TestRangePresets(t *testing.T) {
	cases := map[string]struct{ min, max string }{
		"beginner":     {"C4", "C5"},
		"intermediate": {"C3", "C6"},
	}
	for name, want := range cases {
		r, ok := RangePreset(name)
		if !ok {
			t.Fatalf("preset %q not found", name)
		}
		if r.Min != want.min || r.Max != want.max {
			t.Fatalf("preset %q: got %s-%s, want %s-%s", name, r.Min, r.Max, want.min, want.max)
		}
	}
	if _, ok := RangePreset("virtuoso"); ok {
		t.Fatalf("unknown preset name must not resolve")
	}
	for _, name := range RangePresetNames() {
		if _, ok := RangePreset(name); !ok {
			t.Fatalf("listed preset %q must resolve", name)
		}
	}
}

func TestLoadAbsentYieldsDefaults(t *testing.T) {
	svc := newTestService()
	got, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if got != want {
		t.Fatalf("got %+v, want defaults", got)
	}
}

func TestLoadMergesPartialRecordOverDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	partial := []byte(`{"practice": {"totalQuestions": 50}}`)
	if err := svc.kv.Set(ctx, storageKey, partial); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Practice.TotalQuestions != 50 {
		t.Fatalf("totalQuestions = %d, want 50", got.Practice.TotalQuestions)
	}
	// Untouched fields keep defaults.
	if got.Practice.NoteRange.Min != "C3" || !got.Practice.AutoAdvance {
		t.Fatalf("defaults lost in merge: %+v", got.Practice)
	}
	if got.Display.Theme != "system" {
		t.Fatalf("display defaults lost: %+v", got.Display)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	modified := Defaults()
	modified.Practice.TotalQuestions = 30
	modified.Display.Theme = "dark"
	if err := svc.Save(ctx, modified); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != modified {
		t.Fatalf("got %+v, want %+v", got, modified)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	modified := Defaults()
	modified.Practice.EnableMidi = false
	if err := svc.Save(ctx, modified); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, _ := svc.Load(ctx)
	if got != Defaults() {
		t.Fatalf("expected defaults after reset, got %+v", got)
	}
}

func TestExportFilename(t *testing.T) {
	svc := newTestService()
	name, data, err := svc.Export(Defaults())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if name != "onpu-settings-2026-03-10.json" {
		t.Fatalf("filename = %q", name)
	}
	if len(data) == 0 {
		t.Fatalf("expected serialized data")
	}
}

func TestImportRejectsNonObject(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	modified := Defaults()
	modified.Practice.TotalQuestions = 99
	if err := svc.Save(ctx, modified); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// null decodes into a nil map without error, so it needs its own
	// rejection alongside the type mismatches.
	for _, bad := range []string{`[1,2,3]`, `"text"`, `42`, `not json`, `null`} {
		if _, err := svc.Import(ctx, []byte(bad)); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("input %q: expected ErrInvalidFormat, got %v", bad, err)
		}
	}

	// Failed imports must not mutate.
	got, _ := svc.Load(ctx)
	if got.Practice.TotalQuestions != 99 {
		t.Fatalf("failed import mutated settings: %+v", got)
	}
}

func TestImportMergesOverDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	got, err := svc.Import(ctx, []byte(`{"display": {"theme": "dark"}}`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got.Display.Theme != "dark" {
		t.Fatalf("theme = %q, want dark", got.Display.Theme)
	}
	if got.Practice.TotalQuestions != 12 {
		t.Fatalf("practice defaults lost: %+v", got.Practice)
	}
}
