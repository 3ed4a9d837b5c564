package store

import (
	"context"
	"testing"
	"time"
)

// withTx runs fn in a transaction and fails the test on error.
func withTx(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	if err := s.WithTx(context.Background(), fn); err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}

func TestOpenInterval_DuplicateIsBenign(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var firstID int64
	withTx(t, s, func(tx *Tx) error {
		id, inserted, err := tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "12:00:00")
		if err != nil {
			return err
		}
		if !inserted {
			t.Error("first open should insert")
		}
		firstID = id
		return nil
	})

	// A second open for the same token and date violates open-interval
	// uniqueness and must be dropped, not error.
	withTx(t, s, func(tx *Tx) error {
		_, inserted, err := tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "12:05:00")
		if err != nil {
			return err
		}
		if inserted {
			t.Error("duplicate open should be dropped")
		}
		return nil
	})

	iv, err := s.FindOpenInterval(ctx, "222")
	if err != nil {
		t.Fatal(err)
	}
	if iv == nil || iv.ID != firstID || iv.ConnectTime != "12:00:00" {
		t.Errorf("open interval = %+v, want id %d at 12:00:00", iv, firstID)
	}
}

func TestCloseInterval_ComputesPlaytime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var id int64
	withTx(t, s, func(tx *Tx) error {
		var err error
		id, _, err = tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "12:00:00")
		return err
	})
	withTx(t, s, func(tx *Tx) error {
		return tx.CloseInterval(ctx, id, "13:30:45")
	})

	iv, err := s.GetInterval(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if iv == nil {
		t.Fatal("interval missing")
	}
	if iv.Open() {
		t.Error("interval should be closed")
	}
	want := int64(1*3600 + 30*60 + 45)
	if iv.PlaytimeSeconds != want {
		t.Errorf("playtime = %d, want %d", iv.PlaytimeSeconds, want)
	}
}

func TestCloseInterval_ClampsNegativeToZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var id int64
	withTx(t, s, func(tx *Tx) error {
		var err error
		id, _, err = tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "12:00:00")
		return err
	})
	// Disconnect before connect: clock skew from the shipper.
	withTx(t, s, func(tx *Tx) error {
		return tx.CloseInterval(ctx, id, "11:59:00")
	})

	iv, _ := s.GetInterval(ctx, id)
	if iv.PlaytimeSeconds != 0 {
		t.Errorf("playtime = %d, want 0", iv.PlaytimeSeconds)
	}
}

func TestCloseInterval_MissingIsNoop(t *testing.T) {
	s := openTestStore(t)
	withTx(t, s, func(tx *Tx) error {
		return tx.CloseInterval(context.Background(), 9999, "12:00:00")
	})
}

func TestFindOpenInterval_None(t *testing.T) {
	s := openTestStore(t)
	iv, err := s.FindOpenInterval(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if iv != nil {
		t.Errorf("iv = %+v, want nil", iv)
	}
}

func TestSplitIfCrossedMidnight_SameDayIsNoop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withTx(t, s, func(tx *Tx) error {
		_, _, err := tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "12:00:00")
		return err
	})
	now := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	withTx(t, s, func(tx *Tx) error {
		return tx.SplitIfCrossedMidnight(ctx, "111", "222", "alice", "", now)
	})

	ivs, err := s.IntervalsForToken(ctx, "222")
	if err != nil {
		t.Fatal(err)
	}
	if len(ivs) != 1 {
		t.Fatalf("got %d intervals, want 1", len(ivs))
	}
	if !ivs[0].Open() {
		t.Error("interval should still be open")
	}
}

func TestSplitIfCrossedMidnight_NoOpenIntervalIsNoop(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	withTx(t, s, func(tx *Tx) error {
		return tx.SplitIfCrossedMidnight(context.Background(), "111", "222", "alice", "", now)
	})
}

func TestSplitIfCrossedMidnight_NextDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withTx(t, s, func(tx *Tx) error {
		_, _, err := tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "20:00:00")
		return err
	})
	now := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)
	withTx(t, s, func(tx *Tx) error {
		return tx.SplitIfCrossedMidnight(ctx, "111", "222", "alice", "", now)
	})

	ivs, err := s.IntervalsForToken(ctx, "222")
	if err != nil {
		t.Fatal(err)
	}
	if len(ivs) != 2 {
		t.Fatalf("got %d intervals, want 2: %+v", len(ivs), ivs)
	}

	// Day one closed at end of day.
	if ivs[0].Date != "2024-01-15" || ivs[0].DisconnectTime != "23:59:59" {
		t.Errorf("day one = %+v", ivs[0])
	}
	wantDay1 := int64(4*3600 - 1) // 20:00:00 -> 23:59:59
	if ivs[0].PlaytimeSeconds != wantDay1 {
		t.Errorf("day one playtime = %d, want %d", ivs[0].PlaytimeSeconds, wantDay1)
	}

	// Today reopened at midnight, still open.
	if ivs[1].Date != "2024-01-16" || ivs[1].ConnectTime != "00:00:00" || !ivs[1].Open() {
		t.Errorf("day two = %+v", ivs[1])
	}
}

func TestSplitIfCrossedMidnight_MultiDayGap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withTx(t, s, func(tx *Tx) error {
		_, _, err := tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "20:00:00")
		return err
	})
	// Next event arrives two days later.
	now := time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC)
	withTx(t, s, func(tx *Tx) error {
		return tx.SplitIfCrossedMidnight(ctx, "111", "222", "alice", "", now)
	})

	ivs, err := s.IntervalsForToken(ctx, "222")
	if err != nil {
		t.Fatal(err)
	}
	if len(ivs) != 3 {
		t.Fatalf("got %d intervals, want 3: %+v", len(ivs), ivs)
	}

	if ivs[0].Date != "2024-01-15" || ivs[0].DisconnectTime != "23:59:59" {
		t.Errorf("day one = %+v", ivs[0])
	}
	// Gap day is a closed full-day interval.
	gap := ivs[1]
	if gap.Date != "2024-01-16" || gap.ConnectTime != "00:00:00" || gap.DisconnectTime != "23:59:59" {
		t.Errorf("gap day = %+v", gap)
	}
	if gap.PlaytimeSeconds != 86400 {
		t.Errorf("gap playtime = %d, want 86400", gap.PlaytimeSeconds)
	}
	if ivs[2].Date != "2024-01-17" || ivs[2].ConnectTime != "00:00:00" || !ivs[2].Open() {
		t.Errorf("today = %+v", ivs[2])
	}
}

func TestSplitIfCrossedMidnight_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withTx(t, s, func(tx *Tx) error {
		_, _, err := tx.OpenInterval(ctx, "111", "222", "alice", "", "2024-01-15", "20:00:00")
		return err
	})
	now := time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		withTx(t, s, func(tx *Tx) error {
			return tx.SplitIfCrossedMidnight(ctx, "111", "222", "alice", "", now)
		})
	}

	ivs, err := s.IntervalsForToken(ctx, "222")
	if err != nil {
		t.Fatal(err)
	}
	if len(ivs) != 3 {
		t.Fatalf("got %d intervals after repeated split, want 3", len(ivs))
	}

	// Invariant: at most one open interval per token.
	open := 0
	for _, iv := range ivs {
		if iv.Open() {
			open++
		}
	}
	if open != 1 {
		t.Errorf("open intervals = %d, want 1", open)
	}
}

func TestSecondsBetween(t *testing.T) {
	tests := []struct {
		a, b string
		want int64
	}{
		{"12:00:00", "12:00:00", 0},
		{"12:00:00", "12:00:01", 1},
		{"00:00:00", "23:59:59", 86399},
		{"13:00:00", "12:00:00", 0}, // clamped
	}
	for _, tt := range tests {
		if got := secondsBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("secondsBetween(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
