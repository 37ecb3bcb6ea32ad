package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/nballoc/allocbench/collect"
	"github.com/nballoc/allocbench/sweep"
)

func openTest(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func sampleRows() []collect.Row {
	tuples := sweep.Product([]string{"tt"}, []string{"libc", "nballoc"}, []string{"16"}, []string{"1"}, []string{"1", "2"})

	rows := make([]collect.Row, len(tuples))
	for i, tup := range tuples {
		rows[i] = collect.Row{Tuple: tup, Time: "1849201176"}
	}
	rows[3].Time = collect.Sentinel
	rows[3].Err = collect.ErrMissingTimer

	return rows
}

func TestAppendAndRows(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	rows := sampleRows()

	sw, err := s.Append(ctx, "results_10_4096_8", rows)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := uuid.Parse(sw.ID); err != nil {
		t.Errorf("sweep ID %q is not a UUID: %v", sw.ID, err)
	}
	if sw.Tuples != 4 || sw.Missing != 1 {
		t.Errorf("sweep = %+v", sw)
	}

	got, err := s.Rows(ctx, sw.ID)
	if err != nil {
		t.Fatalf("Rows failed: %v", err)
	}

	if diff := cmp.Diff(rows, got, cmpopts.IgnoreFields(collect.Row{}, "Err")); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if got[3].Err == nil || got[3].Err.Error() != collect.ErrMissingTimer.Error() {
		t.Errorf("missing row reason = %v, want %v", got[3].Err, collect.ErrMissingTimer)
	}
	if got[0].Err != nil {
		t.Errorf("present row has error %v", got[0].Err)
	}
}

func TestSweepsAccumulate(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	first, err := s.Append(ctx, "results_a", sampleRows())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Append(ctx, "results_b", sampleRows()[:1])
	if err != nil {
		t.Fatal(err)
	}

	sweeps, err := s.Sweeps(ctx)
	if err != nil {
		t.Fatalf("Sweeps failed: %v", err)
	}

	if len(sweeps) != 2 {
		t.Fatalf("got %d sweeps, want 2", len(sweeps))
	}

	ids := map[string]Sweep{sweeps[0].ID: sweeps[0], sweeps[1].ID: sweeps[1]}
	if ids[first.ID].ResultsDir != "results_a" || ids[second.ID].Tuples != 1 {
		t.Errorf("sweeps = %+v", sweeps)
	}

	rows, err := s.Rows(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("second sweep has %d rows, want 1", len(rows))
	}
}

func TestRowsKeepClocksVerbatim(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	rows := sampleRows()[:3]
	rows[0].Time = "0012345"
	rows[1].Time = "18446744073709551615"
	rows[2].Time = "7"

	sw, err := s.Append(ctx, "results_a", rows)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := s.Rows(ctx, sw.ID)
	if err != nil {
		t.Fatalf("Rows failed: %v", err)
	}

	var times []string
	for _, r := range got {
		times = append(times, r.Time)
	}

	if diff := cmp.Diff([]string{"0012345", "18446744073709551615", "7"}, times); diff != "" {
		t.Errorf("times mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stamps := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(time.Second),
	}

	var want []string
	for _, ts := range stamps {
		s.now = func() time.Time { return ts }

		sw, err := s.Append(ctx, "results_a", sampleRows()[:1])
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		want = append(want, sw.ID)
	}

	sweeps, err := s.Sweeps(ctx)
	if err != nil {
		t.Fatalf("Sweeps failed: %v", err)
	}

	var got []string
	for _, sw := range sweeps {
		got = append(got, sw.ID)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sweep order mismatch (-want +got):\n%s", diff)
	}
	if !sweeps[0].CreatedAt.Equal(base) {
		t.Errorf("first sweep created at %v, want %v", sweeps[0].CreatedAt, base)
	}
}
