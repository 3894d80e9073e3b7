package eventlog

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppendAndReadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	log, err := Open(path, fixedClock(fixed))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	type fillPayload struct {
		OrderID string
		Price   string
	}
	seq1, err := log.Append(fixed, KindFill, fillPayload{OrderID: "o1", Price: "100.00"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	seq2, err := log.Append(fixed.Add(time.Minute), KindCashMovement, fillPayload{OrderID: "o2", Price: "50.00"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if seq1 != 1 || seq2 != 2 {
		t.Fatalf("expected sequence 1,2, got %d,%d", seq1, seq2)
	}
	if err := log.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Sequence != 1 || records[1].Sequence != 2 {
		t.Fatalf("sequence numbers not monotone: %d, %d", records[0].Sequence, records[1].Sequence)
	}
	if records[0].Kind != KindFill || records[1].Kind != KindCashMovement {
		t.Fatalf("kind mismatch")
	}
}

func TestSealRejectsFurtherAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	log, err := Open(path, fixedClock(time.Now()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := log.Append(time.Now(), KindFill, struct{}{}); err == nil {
		t.Fatalf("expected error appending to sealed log")
	}
}

func TestDeterministicBytesForIdenticalInputs(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	write := func(path string) {
		log, err := Open(path, fixedClock(fixed))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		for i := range 5 {
			if _, err := log.Append(fixed, KindFill, map[string]int{"i": i}); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		if err := log.Seal(); err != nil {
			t.Fatalf("Seal: %v", err)
		}
	}

	pathA := filepath.Join(dir, "a.log")
	pathB := filepath.Join(dir, "b.log")
	write(pathA)
	write(pathB)

	a, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("byte lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("byte mismatch at offset %d", i)
		}
	}
}

func TestNextReturnsEOFAtEndOfLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	log, _ := Open(path, fixedClock(time.Now()))
	_, _ = log.Append(time.Now(), KindFill, struct{}{})
	_ = log.Seal()

	rd, closeFn, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer closeFn()

	if _, err := rd.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := rd.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
