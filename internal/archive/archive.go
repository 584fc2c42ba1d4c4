// Package archive provides optional local capture of completed
// transmissions into a Sqlite database. The monitor runs fine without
// it; when enabled, every transmission_end event observed on the push
// stream is recorded under a capture session so past activity survives
// backend restarts and retention cleanups.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scanmon/scanmon/internal/scanner"
)

// Session describes one capture run. A new session is started every
// time the monitor boots with archiving enabled.
type Session struct {
	ID         int64
	StartTime  time.Time
	BackendURL string
}

// Captured is a single archived transmission.
type Captured struct {
	ID                int64
	SessionID         int64
	Timestamp         time.Time
	FrequencyHz       float64
	SignalStrengthDbm float64
	DurationSeconds   float64
	Description       string
	Modulation        string
}

// Store handles database operations. Connections are opened lazily:
// a write connection that initializes the schema, and a separate
// read-only connection for queries.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store backed by the Sqlite database at dbPath.
// The file is created on first write.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// BeginSession inserts a new capture session and returns its ID.
func (s *Store) BeginSession(ctx context.Context, backendURL string) (sessionID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, backendURL)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// StoreTransmission records one completed transmission under the given
// session. Timestamps are stored in UTC.
func (s *Store) StoreTransmission(ctx context.Context, sessionID int64, ev *scanner.TransmissionEndEvent, at time.Time) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTransmissionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var description, modulation sql.NullString
	if ev.Description != "" {
		description.Valid = true
		description.String = ev.Description
	}
	if ev.Modulation != "" {
		modulation.Valid = true
		modulation.String = ev.Modulation
	}

	if _, err = stmt.ExecContext(ctx, sessionID, at.UTC(), ev.FrequencyHz, ev.SignalStrengthDbm, ev.DurationSeconds, description, modulation); err != nil {
		err = fmt.Errorf("inserting transmission: %w", err)
	}
	return
}

// Sessions returns all capture sessions in insertion order.
func (s *Store) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.BackendURL); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

// Transmissions returns every archived transmission for a session,
// ordered by timestamp.
func (s *Store) Transmissions(ctx context.Context, sessionID int64) (captured []*Captured, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTransmissionsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying transmissions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var c Captured
		var description, modulation sql.NullString
		if err = rows.Scan(&c.ID, &c.SessionID, &c.Timestamp, &c.FrequencyHz, &c.SignalStrengthDbm, &c.DurationSeconds, &description, &modulation); err != nil {
			err = fmt.Errorf("scanning transmission: %w", err)
			return
		}
		c.Description = description.String
		c.Modulation = modulation.String
		captured = append(captured, &c)
	}
	err = rows.Err()
	return
}

// Close closes the underlying database connections. The store must not
// be used after Close.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			if err := s.writeDB.Close(); err != nil {
				s.closeErr = fmt.Errorf("closing write connection: %w", err)
			}
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil && s.closeErr == nil {
				s.closeErr = fmt.Errorf("closing read connection: %w", err)
			}
		}
	})
	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
