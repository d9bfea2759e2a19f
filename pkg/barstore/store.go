// Package barstore persists aggregated bars to SQLite.
package barstore

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	instrument  TEXT    NOT NULL,
	timeframe   INTEGER NOT NULL,  -- 周期（秒）
	open_time   INTEGER NOT NULL,  -- unix秒
	open        REAL    NOT NULL,
	high        REAL    NOT NULL,
	low         REAL    NOT NULL,
	close       REAL    NOT NULL,
	volume      INTEGER NOT NULL,
	oi          REAL    NOT NULL,
	oi_delta    REAL    NOT NULL,
	PRIMARY KEY (instrument, timeframe, open_time)
);
`

// Store writes bars through a buffered channel so the engine's event path
// never blocks on disk. Append after Close drops the bar with a warning.
type Store struct {
	db *sql.DB

	ch     chan *market.Bar
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Open creates or opens the bar database and starts the writer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bar schema: %w", err)
	}

	s := &Store{
		db:   db,
		ch:   make(chan *market.Bar, 256),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()

	log.Printf("[BarStore] opened %s", path)
	return s, nil
}

// Append queues one bar for persistence. Implements the engine's bar sink.
func (s *Store) Append(bar *market.Bar) {
	if bar == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Printf("[BarStore] dropped bar for %s, store closed", bar.Instrument)
		return
	}
	s.mu.Unlock()

	select {
	case s.ch <- bar:
	default:
		log.Printf("[BarStore] write queue full, dropping bar for %s", bar.Instrument)
	}
}

// Close drains queued bars and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) writer() {
	defer s.wg.Done()

	for {
		select {
		case bar := <-s.ch:
			s.insert(bar)
		case <-s.done:
			for {
				select {
				case bar := <-s.ch:
					s.insert(bar)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) insert(bar *market.Bar) {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO bars
		 (instrument, timeframe, open_time, open, high, low, close, volume, oi, oi_delta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bar.Instrument,
		int64(bar.Timeframe.Seconds()),
		bar.OpenTime.Unix(),
		bar.Open, bar.High, bar.Low, bar.Close,
		bar.Volume, bar.OpenInterest, bar.OpenInterestDelta,
	)
	if err != nil {
		log.Printf("[BarStore] insert failed for %s: %v", bar.Instrument, err)
	}
}

// Query returns stored bars for an instrument and timeframe, oldest first,
// capped at limit (0 means no cap).
func (s *Store) Query(instrument string, timeframe int64, limit int) ([]*market.Bar, error) {
	q := `SELECT instrument, timeframe, open_time, open, high, low, close, volume, oi, oi_delta
	      FROM bars WHERE instrument = ? AND timeframe = ? ORDER BY open_time`
	args := []any{instrument, timeframe}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []*market.Bar
	for rows.Next() {
		var (
			bar      market.Bar
			tfSec    int64
			openUnix int64
		)
		err := rows.Scan(&bar.Instrument, &tfSec, &openUnix,
			&bar.Open, &bar.High, &bar.Low, &bar.Close,
			&bar.Volume, &bar.OpenInterest, &bar.OpenInterestDelta)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}
		bar.Timeframe = time.Duration(tfSec) * time.Second
		bar.OpenTime = time.Unix(openUnix, 0)
		bars = append(bars, &bar)
	}
	return bars, rows.Err()
}
