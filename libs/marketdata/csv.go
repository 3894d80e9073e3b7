package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CSVProvider is a Provider backed by an eagerly-loaded OHLCV CSV file, one
// per instrument. It is a historical data source only: Subscribe is a
// bookkeeping no-op, Enumerate replays the loaded bars in order.
type CSVProvider struct {
	instrument Instrument
	resolution Resolution
	bars       []Bar // sorted by Timestamp ascending
}

var csvDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format %q", s)
}

// LoadCSVProvider reads an OHLCV CSV (header columns: date, open, high, low,
// close, volume, case-insensitive, any order) for instrument at resolution.
func LoadCSVProvider(filePath string, instrument Instrument, resolution Resolution) (*CSVProvider, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := func(name string) (int, error) {
		i, ok := colIdx[name]
		if !ok {
			return 0, fmt.Errorf("CSV missing column %q", name)
		}
		return i, nil
	}
	dateCol, err := idx("date")
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}
	openCol, err := idx("open")
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}
	highCol, err := idx("high")
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}
	lowCol, err := idx("low")
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}
	closeCol, err := idx("close")
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}
	volCol, err := idx("volume")
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSVProvider: %w", err)
	}

	var bars []Bar
	lineNo := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d: %w", lineNo+1, err)
		}
		lineNo++

		ts, err := parseCSVDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d date: %w", lineNo, err)
		}
		o, err := decimal.NewFromString(strings.TrimSpace(row[openCol]))
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d open: %w", lineNo, err)
		}
		h, err := decimal.NewFromString(strings.TrimSpace(row[highCol]))
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d high: %w", lineNo, err)
		}
		l, err := decimal.NewFromString(strings.TrimSpace(row[lowCol]))
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d low: %w", lineNo, err)
		}
		c, err := decimal.NewFromString(strings.TrimSpace(row[closeCol]))
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d close: %w", lineNo, err)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(row[volCol]))
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d volume: %w", lineNo, err)
		}

		bar := Bar{
			Timestamp:  ts,
			Instrument: instrument,
			Resolution: resolution,
			HasTrade:   true,
			Open:       o,
			High:       h,
			Low:        l,
			Close:      c,
			Volume:     v,
		}
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSVProvider: line %d: %w", lineNo, err)
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	return &CSVProvider{instrument: instrument, resolution: resolution, bars: bars}, nil
}

func (p *CSVProvider) Enumerate(ctx context.Context) (<-chan MarketEvent, error) {
	out := make(chan MarketEvent)
	go func() {
		defer close(out)
		for _, b := range p.bars {
			select {
			case <-ctx.Done():
				return
			case out <- NewBarEvent(b):
			}
		}
	}()
	return out, nil
}

func (p *CSVProvider) Subscribe(i Instrument, r Resolution) (Handle, error) {
	return Handle{Instrument: i, Resolution: r}, nil
}

func (p *CSVProvider) Warmup(ctx context.Context, i Instrument, r Resolution, start time.Time) ([]Bar, error) {
	var prior []Bar
	for _, b := range p.bars {
		if b.EffectiveAt().Before(start) {
			prior = append(prior, b)
		}
	}
	return prior, nil
}
