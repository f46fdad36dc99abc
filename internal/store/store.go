// Package store exports parsed survey logs into SQLite for ad-hoc querying.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"opensonar/internal/surveylog"
)

// SqliteStore holds one export database.
type SqliteStore struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// Session is one imported log.
type Session struct {
	ID       int64
	LogPath  string
	Survey   string
	Vessel   string
	Metadata surveylog.Metadata
	Dropped  int
}

// Sounding is one exported $DEPTH row.
type Sounding struct {
	Seq        int
	TimeOfDay  string
	DepthM     sql.NullFloat64
	Confidence sql.NullFloat64
	SoundSpeed sql.NullFloat64
}

func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.dbErr = fmt.Errorf("opening connection: %w", err)
			return
		}
		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// Export writes a parsed log as a new session and returns its ID.
func (s *SqliteStore) Export(ctx context.Context, lg *surveylog.Log) (sessionID int64, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, fmt.Errorf("getting connection: %w", err)
	}
	md, err := json.Marshal(lg.Header.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	result, err := tx.ExecContext(ctx, insertSessionSQL,
		lg.Path,
		lg.Header.Metadata.Survey.Name,
		lg.Header.Metadata.Vessel.Name,
		string(md),
		lg.Stats.Dropped,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	if sessionID, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting session ID: %w", err)
	}

	if err = storeRecords(ctx, tx, sessionID, lg.Records); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return sessionID, nil
}

func storeRecords(ctx context.Context, tx *sql.Tx, sessionID int64, recs []surveylog.Record) (err error) {
	recStmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(recStmt, &err)
	sndStmt, err := tx.PrepareContext(ctx, insertSoundingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(sndStmt, &err)
	ggaStmt, err := tx.PrepareContext(ctx, insertGGASQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(ggaStmt, &err)

	for seq, rec := range recs {
		tod := rec.Time().Format(surveylog.TimeLayout)
		fields, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", seq, err)
		}
		if _, err := recStmt.ExecContext(ctx, sessionID, seq, tod, string(rec.Kind()), string(fields)); err != nil {
			return fmt.Errorf("inserting record %d: %w", seq, err)
		}

		switch r := rec.(type) {
		case *surveylog.Depth:
			depth, ok := r.DepthM()
			if _, err := sndStmt.ExecContext(ctx, sessionID, seq, tod,
				nullFloat(depth, ok), fieldFloat(r.Confidence), fieldFloat(r.SoundSpeed)); err != nil {
				return fmt.Errorf("inserting sounding %d: %w", seq, err)
			}
		case *surveylog.GGA:
			lat, lon, ok := r.Position()
			var quality sql.NullInt64
			if q, qok := r.Quality.Float(); qok {
				quality = sql.NullInt64{Int64: int64(q), Valid: true}
			}
			if _, err := ggaStmt.ExecContext(ctx, sessionID, seq, tod,
				nullFloat(lat, ok), nullFloat(lon, ok),
				fieldFloat(r.OrthoHeight), fieldFloat(r.GeoidSep), quality); err != nil {
				return fmt.Errorf("inserting gga fix %d: %w", seq, err)
			}
		}
	}
	return nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []Session, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var md string
		if err = rows.Scan(&sess.ID, &sess.LogPath, &sess.Survey, &sess.Vessel, &md, &sess.Dropped); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if err = json.Unmarshal([]byte(md), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("decoding session %d metadata: %w", sess.ID, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SqliteStore) Soundings(ctx context.Context, sessionID int64) (out []Sounding, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	rows, err := db.QueryContext(ctx, selectSoundingsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying soundings: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var snd Sounding
		if err = rows.Scan(&snd.Seq, &snd.TimeOfDay, &snd.DepthM, &snd.Confidence, &snd.SoundSpeed); err != nil {
			return nil, fmt.Errorf("scanning sounding: %w", err)
		}
		out = append(out, snd)
	}
	return out, rows.Err()
}

// RecordCounts returns the number of exported records per kind.
func (s *SqliteStore) RecordCounts(ctx context.Context, sessionID int64) (counts map[surveylog.RecordKind]int, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	rows, err := db.QueryContext(ctx, countRecordsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	defer closeWithError(rows, &err)

	counts = map[surveylog.RecordKind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err = rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[surveylog.RecordKind(kind)] = n
	}
	return counts, rows.Err()
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db == nil {
			return
		}
		_, idxErr := s.db.Exec(initIndexesSQL)
		s.closeErr = errors.Join(idxErr, s.db.Close())
		s.db = nil
	})
	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError ignores sql.ErrTxDone so it can be deferred after Commit.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rErr := rb.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) && *err == nil {
		*err = rErr
	}
}

func nullFloat(v float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func fieldFloat(f surveylog.Field) sql.NullFloat64 {
	return nullFloat(f.Float())
}
