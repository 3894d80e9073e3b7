// Package eventlog implements the append-only, length-prefixed event log
// spec §4.10 requires: every state-changing event (order submit/transition,
// fill, cash movement, position update, risk veto, violation) recorded
// with a strictly monotone sequence number, so that two runs with
// identical inputs and seed reproduce byte-identical logs.
package eventlog

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Kind tags which payload a Record carries.
type Kind int

const (
	KindOrderSubmit Kind = iota
	KindOrderTransition
	KindFill
	KindCashMovement
	KindPositionUpdate
	KindRiskVeto
	KindViolation
)

func (k Kind) String() string {
	switch k {
	case KindOrderSubmit:
		return "order_submit"
	case KindOrderTransition:
		return "order_transition"
	case KindFill:
		return "fill"
	case KindCashMovement:
		return "cash_movement"
	case KindPositionUpdate:
		return "position_update"
	case KindRiskVeto:
		return "risk_veto"
	case KindViolation:
		return "violation"
	default:
		return "unknown"
	}
}

// Record is one entry in the log: a tagged union identified by Kind, with
// the clock's simulated timestamp and the wall-clock write time, plus an
// arbitrary JSON payload specific to Kind.
type Record struct {
	Sequence  uint64          `json:"seq"`
	ClockTime time.Time       `json:"clock_time"`
	WallTime  time.Time       `json:"wall_time"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// Log is an append-only, length-prefixed sink. Each record is written as
// a big-endian uint32 byte length followed by its JSON encoding, so a
// reader can walk the file without scanning for delimiters. Sequence
// numbers are assigned by the Log itself and are strictly increasing;
// WallTime is stamped by the wall clock passed to Open, so tests can
// supply a fixed clock for reproducibility.
type Log struct {
	w       *bufio.Writer
	f       *os.File
	seq     uint64
	sealed  bool
	nowFunc func() time.Time
}

// Open creates (or truncates) a log file at path for a fresh run. A
// backtest run always starts a new log; there is no append-to-existing-
// file mode, since sequence numbers are meaningless across distinct runs.
func Open(path string, nowFunc func() time.Time) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %q: %w", path, err)
	}
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Log{w: bufio.NewWriter(f), f: f, nowFunc: nowFunc}, nil
}

// Append writes one record, assigning it the next sequence number. It
// refuses to write once the log has been Sealed (e.g. after an
// invariant-violation abort).
func (l *Log) Append(clockTime time.Time, kind Kind, payload any) (uint64, error) {
	if l.sealed {
		return 0, fmt.Errorf("eventlog: log is sealed, cannot append")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("eventlog: marshal payload: %w", err)
	}
	l.seq++
	rec := Record{
		Sequence:  l.seq,
		ClockTime: clockTime,
		WallTime:  l.nowFunc(),
		Kind:      kind,
		Payload:   raw,
	}
	body, err := json.Marshal(rec)
	if err != nil {
		l.seq--
		return 0, fmt.Errorf("eventlog: marshal record: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := l.w.Write(lenBuf[:]); err != nil {
		l.seq--
		return 0, fmt.Errorf("eventlog: write length prefix: %w", err)
	}
	if _, err := l.w.Write(body); err != nil {
		l.seq--
		return 0, fmt.Errorf("eventlog: write record: %w", err)
	}
	return rec.Sequence, nil
}

// Seal flushes and closes the log, refusing any further Append calls.
// Called both on a clean run completion and on an invariant-violation
// abort — in both cases the log on disk must end at a consistent record
// boundary.
func (l *Log) Seal() error {
	if l.sealed {
		return nil
	}
	l.sealed = true
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("eventlog: flush: %w", err)
	}
	return l.f.Close()
}

// Reader reads records back from a sealed (or in-progress) log file.
type Reader struct {
	r *bufio.Reader
}

// OpenReader opens path for sequential record reads.
func OpenReader(path string) (*Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("eventlog: open reader %q: %w", path, err)
	}
	return &Reader{r: bufio.NewReader(f)}, f.Close, nil
}

// Next reads the next record, returning io.EOF when the log is exhausted.
func (rd *Reader) Next() (Record, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(rd.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, fmt.Errorf("eventlog: truncated length prefix")
		}
		return Record{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(rd.r, body); err != nil {
		return Record{}, fmt.Errorf("eventlog: truncated record body: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("eventlog: unmarshal record: %w", err)
	}
	return rec, nil
}

// ReadAll reads every record in the log in sequence order.
func ReadAll(path string) ([]Record, error) {
	rd, closeFn, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var out []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
