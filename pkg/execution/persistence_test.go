package execution

import (
	"testing"
)

func TestPositionFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	positions := map[string]PositionView{
		"rb2605": {Instrument: "rb2605", Net: 4, LongToday: 2, LongYd: 3, ShortToday: 1,
			LongTotal: 5, ShortTotal: 1, Today: 1, Yesterday: 3},
		"ag2605": {Instrument: "ag2605"},
	}
	if err := SavePositionFile(dir, positions); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadPositionFile(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a position file")
	}
	if len(loaded.Positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(loaded.Positions))
	}
	rb := loaded.Positions["rb2605"]
	if rb.Net != 4 || rb.LongToday != 2 || rb.LongYd != 3 {
		t.Errorf("rb2605 = %+v", rb)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("saved_at not recorded")
	}
}

func TestLoadPositionFileMissing(t *testing.T) {
	loaded, err := LoadPositionFile(t.TempDir())
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil, got %+v", loaded)
	}
}
