package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// genesisHash is the previous-hash of the first record in a chain.
var genesisHash = strings.Repeat("0", sha256.Size*2)

// SQLiteStore persists audit events in a hash-chained SQLite table. Each row
// stores the hash of its predecessor and of every column it serves, so
// deleting or editing a row breaks verification from that row on.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the audit database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.SecureDirPermissions); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, domain.SecureFilePermissions)
	return store, nil
}

func (s *SQLiteStore) init() error {
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS audit_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		event_id INTEGER NOT NULL,
		level TEXT NOT NULL,
		line TEXT NOT NULL,
		command TEXT,
		session TEXT,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

// Append inserts an event, chaining it to the last stored hash.
func (s *SQLiteStore) Append(ctx context.Context, event domain.Event, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	prev := genesisHash
	err = tx.QueryRowContext(ctx, "SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1").Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	ts := event.Timestamp().UTC().Format(time.RFC3339Nano)
	rec := domain.AuditRecord{
		EventID: event.ID(),
		Level:   event.Level().String(),
		Line:    line,
		Command: event.Command(),
		Session: event.SessionID(),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_events
		(timestamp, event_id, level, line, command, session, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts,
		uint32(rec.EventID),
		rec.Level,
		rec.Line,
		rec.Command,
		rec.Session,
		prev,
		chainHash(prev, ts, rec),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Records returns events newest first (limit/search optional).
func (s *SQLiteStore) Records(ctx context.Context, limit int, search string) ([]domain.AuditRecord, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT seq, timestamp, event_id, level, line, command, session, prev_hash, hash FROM audit_events")
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE line LIKE ? OR command LIKE ?")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	builder.WriteString(" ORDER BY seq DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Verify walks the chain in insertion order and reports the first broken link.
func (s *SQLiteStore) Verify(ctx context.Context) (domain.ChainReport, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT seq, timestamp, event_id, level, line, command, session, prev_hash, hash FROM audit_events ORDER BY seq ASC")
	if err != nil {
		return domain.ChainReport{}, err
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return domain.ChainReport{}, err
	}

	report := domain.ChainReport{Records: len(records), Valid: true}
	prev := genesisHash
	for _, rec := range records {
		ts := rec.Timestamp.UTC().Format(time.RFC3339Nano)
		switch {
		case rec.PrevHash != prev:
			report.Valid = false
			report.BrokenAt = rec.Seq
			report.Detail = fmt.Sprintf("record %d does not link to its predecessor", rec.Seq)
		case rec.Hash != chainHash(prev, ts, rec):
			report.Valid = false
			report.BrokenAt = rec.Seq
			report.Detail = fmt.Sprintf("record %d content does not match its hash", rec.Seq)
		}
		if !report.Valid {
			return report, nil
		}
		prev = rec.Hash
	}
	return report, nil
}

// ExportJSON writes the audit table to a jsonl file, oldest first.
func (s *SQLiteStore) ExportJSON(ctx context.Context, dest string) error {
	records, err := s.Records(ctx, 0, "")
	if err != nil {
		return err
	}
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	for i := len(records) - 1; i >= 0; i-- {
		b, err := json.Marshal(records[i])
		if err != nil {
			return err
		}
		if _, err := file.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var ts string
		var id int64
		var command, session sql.NullString
		if err := rows.Scan(&rec.Seq, &ts, &id, &rec.Level, &rec.Line, &command, &session, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		rec.EventID = domain.EventID(id)
		rec.Command = command.String
		rec.Session = session.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// chainHash covers every stored column except the sequence number. Fields are
// length-prefixed so no value can shift bytes into its neighbour.
func chainHash(prev, timestamp string, rec domain.AuditRecord) string {
	h := sha256.New()
	for _, field := range []string{
		prev,
		timestamp,
		strconv.FormatUint(uint64(rec.EventID), 10),
		rec.Level,
		rec.Line,
		rec.Command,
		rec.Session,
	} {
		h.Write([]byte(strconv.Itoa(len(field))))
		h.Write([]byte{':'})
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ ports.AuditRepository = (*SQLiteStore)(nil)
