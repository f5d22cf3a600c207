package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rcliao/companion-brain/internal/model"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const recordColumns = `id, robot_id, timestamp, user_text, ai_response, mood_tag, touch_zone,
	context_id, session_id, importance_score, memory_type, vector, metadata`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	dims   int
	logger *slog.Logger

	entropyMu sync.Mutex
	entropy   *rand.Rand

	ownerLocks sync.Map // owner id -> *sync.Mutex
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithVectorDimension rejects embeddings of any other length.
func WithVectorDimension(dims int) Option {
	return func(s *SQLiteStore) { s.dims = dims }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// NewSQLiteStore opens or creates a SQLite database at the given path and
// applies pending migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

var gooseOnce sync.Once

func (s *SQLiteStore) migrate() error {
	var setupErr error
	gooseOnce.Do(func() {
		goose.SetLogger(stdlog.New(io.Discard, "", 0))
		goose.SetBaseFS(embedMigrations)
		setupErr = goose.SetDialect("sqlite3")
	})
	if setupErr != nil {
		return fmt.Errorf("set goose dialect: %w", setupErr)
	}
	return goose.Up(s.db, "migrations")
}

func (s *SQLiteStore) newSessionID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// lockOwner serializes writers of one owner.
func (s *SQLiteStore) lockOwner(ownerID string) func() {
	v, _ := s.ownerLocks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *SQLiteStore) StartSession(ctx context.Context, ownerID, sessionID string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: owner id is required", ErrInvalidRecord)
	}
	if sessionID == "" {
		sessionID = s.newSessionID()
	}

	unlock := s.lockOwner(ownerID)
	defer unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, robot_id, start_time, interaction_count)
		 VALUES (?, ?, ?, 0)`,
		sessionID, ownerID, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", storageErr("start session", err)
	}
	return sessionID, nil
}

func (s *SQLiteStore) validate(rec model.MemoryRecord) error {
	switch {
	case rec.OwnerID == "":
		return fmt.Errorf("%w: owner id is required", ErrInvalidRecord)
	case rec.SessionID == "":
		return fmt.Errorf("%w: session id is required", ErrInvalidRecord)
	case rec.ImportanceScore < 0 || rec.ImportanceScore > 1:
		return fmt.Errorf("%w: importance %.3f outside [0,1]", ErrInvalidRecord, rec.ImportanceScore)
	case rec.TouchZone != nil && !rec.TouchZone.Valid():
		return fmt.Errorf("%w: unknown touch zone %d", ErrInvalidRecord, *rec.TouchZone)
	case rec.Embedding != nil && s.dims > 0 && len(rec.Embedding) != s.dims:
		return fmt.Errorf("%w: embedding has %d dims, want %d", ErrInvalidRecord, len(rec.Embedding), s.dims)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec model.MemoryRecord) (model.MemoryRecord, error) {
	if err := s.validate(rec); err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.MoodTag == "" {
		rec.MoodTag = model.MoodNeutral
	}
	if rec.Kind == "" {
		rec.Kind = model.KindInteraction
	}

	var vectorJSON, metaJSON *string
	if rec.Embedding != nil {
		b, err := json.Marshal(rec.Embedding)
		if err != nil {
			return rec, fmt.Errorf("encode embedding: %w", err)
		}
		v := string(b)
		vectorJSON = &v
	}
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return rec, fmt.Errorf("encode metadata: %w", err)
		}
		m := string(b)
		metaJSON = &m
	}
	var touch *int
	if rec.TouchZone != nil {
		z := int(*rec.TouchZone)
		touch = &z
	}

	unlock := s.lockOwner(rec.OwnerID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, storageErr("insert", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, robot_id, start_time, interaction_count)
		 VALUES (?, ?, ?, 0)`,
		rec.SessionID, rec.OwnerID, rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return rec, storageErr("insert session", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memory_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.CreatedAt.UTC().Format(timeLayout), rec.UserText, rec.AgentText,
		rec.MoodTag, touch, nullIfEmpty(rec.ContextID), rec.SessionID, rec.ImportanceScore,
		rec.Kind, vectorJSON, metaJSON)
	if err != nil {
		return rec, storageErr("insert memory", err)
	}

	if err := tx.Commit(); err != nil {
		return rec, storageErr("commit memory", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ScanBySession(ctx context.Context, sessionID string, limit int) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRecords(ctx, "scan session",
		`SELECT `+recordColumns+` FROM memory_records
		 WHERE session_id = ?
		 ORDER BY timestamp DESC, rowid DESC
		 LIMIT ?`, sessionID, limit)
}

func (s *SQLiteStore) ScanByOwner(ctx context.Context, ownerID string, limit int, f ScanFilter) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	where := []string{"robot_id = ?"}
	args := []interface{}{ownerID}

	if f.WithEmbedding {
		where = append(where, "vector IS NOT NULL")
	}
	if len(f.Moods) > 0 {
		where = append(where, "mood_tag IN ("+placeholders(len(f.Moods))+")")
		for _, m := range f.Moods {
			args = append(args, m)
		}
	}

	order := "timestamp DESC, rowid DESC"
	if f.ByImportance {
		order = "importance_score DESC, " + order
	}

	query := fmt.Sprintf(`SELECT %s FROM memory_records WHERE %s ORDER BY %s LIMIT ?`,
		recordColumns, strings.Join(where, " AND "), order)
	args = append(args, limit)

	return s.queryRecords(ctx, "scan owner", query, args...)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, op, query string, args ...interface{}) ([]model.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var records []model.MemoryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return records, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess model.Session) error {
	unlock := s.lockOwner(sess.OwnerID)
	defer unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET interaction_count = ?, emotion_summary = ?, context_summary = ?
		 WHERE session_id = ?`,
		sess.InteractionCount, nullIfEmpty(sess.MoodSummary), nullIfEmpty(sess.ContextSummary), sess.ID)
	if err != nil {
		return storageErr("update session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, robot_id, start_time, end_time, interaction_count, emotion_summary, context_summary
		 FROM sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return &sess, nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, ownerID string, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, robot_id, start_time, end_time, interaction_count, emotion_summary, context_summary
		 FROM sessions WHERE robot_id = ?
		 ORDER BY start_time DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storageErr("list sessions", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// FirstSeen returns the start time of the owner's earliest session.
func (s *SQLiteStore) FirstSeen(ctx context.Context, ownerID string) (time.Time, error) {
	var start sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(start_time) FROM sessions WHERE robot_id = ?`, ownerID).Scan(&start)
	if err != nil {
		return time.Time{}, storageErr("first seen", err)
	}
	if !start.Valid {
		return time.Time{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}
	t, _ := time.Parse(timeLayout, start.String)
	return t, nil
}

func (s *SQLiteStore) PurgeSession(ctx context.Context, sessionID string) (int, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT robot_id FROM sessions WHERE session_id = ?`, sessionID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("purge session", err)
	}

	unlock := s.lockOwner(ownerID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("purge session", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM memory_records WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, storageErr("purge records", err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return 0, storageErr("purge session row", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("purge commit", err)
	}

	s.logger.Info("session purged", "session_id", sessionID, "owner_id", ownerID, "records", n)
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (model.MemoryRecord, error) {
	var r model.MemoryRecord
	var createdAt string
	var touch sql.NullInt64
	var contextID, vector, meta sql.NullString

	err := row.Scan(
		&r.ID, &r.OwnerID, &createdAt, &r.UserText, &r.AgentText, &r.MoodTag, &touch,
		&contextID, &r.SessionID, &r.ImportanceScore, &r.Kind, &vector, &meta,
	)
	if err != nil {
		return r, err
	}

	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if touch.Valid {
		r.TouchZone = model.Zone(model.TouchZone(touch.Int64))
	}
	if contextID.Valid {
		r.ContextID = contextID.String
	}
	if vector.Valid {
		if err := json.Unmarshal([]byte(vector.String), &r.Embedding); err != nil {
			return r, fmt.Errorf("decode vector of %s: %w", r.ID, err)
		}
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
			return r, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func scanSession(row scanner) (model.Session, error) {
	var sess model.Session
	var start string
	var end, mood, summary sql.NullString

	err := row.Scan(&sess.ID, &sess.OwnerID, &start, &end, &sess.InteractionCount, &mood, &summary)
	if err != nil {
		return sess, err
	}
	sess.StartTime, _ = time.Parse(timeLayout, start)
	if end.Valid {
		t, _ := time.Parse(timeLayout, end.String)
		sess.EndTime = &t
	}
	sess.MoodSummary = mood.String
	sess.ContextSummary = summary.String
	return sess, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
