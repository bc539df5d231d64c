package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	alertmodel "github.com/kidia/backend/internal/model/alert"
	chatmodel "github.com/kidia/backend/internal/model/chat"
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at the given path and
// applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS children (
		id             TEXT PRIMARY KEY,
		parent_id      TEXT NOT NULL,
		name           TEXT NOT NULL,
		age            INTEGER,
		memory_context TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_children_parent ON children(parent_id);

	CREATE TABLE IF NOT EXISTS conversation_sessions (
		id            TEXT PRIMARY KEY,
		child_id      TEXT NOT NULL REFERENCES children(id),
		is_active     INTEGER NOT NULL DEFAULT 1,
		message_count INTEGER NOT NULL DEFAULT 0,
		started_at    TEXT NOT NULL,
		ended_at      TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
		ON conversation_sessions(child_id) WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS session_messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES conversation_sessions(id),
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON session_messages(session_id, created_at);

	CREATE TABLE IF NOT EXISTS parent_alerts (
		id                 TEXT PRIMARY KEY,
		child_id           TEXT NOT NULL REFERENCES children(id),
		alert_type         TEXT NOT NULL,
		severity           TEXT NOT NULL,
		title              TEXT NOT NULL,
		content            TEXT NOT NULL,
		original_message   TEXT NOT NULL,
		assistant_response TEXT,
		was_read           INTEGER NOT NULL DEFAULT 0,
		created_at         TEXT NOT NULL,
		read_at            TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_child ON parent_alerts(child_id, was_read);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, raw)
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// FindOrCreateActiveSession returns the child's active session, creating
// one when none exists. The partial unique index on active sessions makes
// the create atomic: the loser of a concurrent insert re-reads the
// winner's row.
func (s *SQLiteStore) FindOrCreateActiveSession(ctx context.Context, childID string) (chatmodel.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		session, err := s.findActiveSession(ctx, childID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return chatmodel.Session{}, fmt.Errorf("find active session: %w", err)
		}

		now := time.Now()
		id := uuid.NewString()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO conversation_sessions (id, child_id, is_active, message_count, started_at)
			 VALUES (?, ?, 1, 0, ?)`,
			id, childID, formatTime(now))
		if err == nil {
			return chatmodel.Session{ID: id, ChildID: childID, Active: true, StartedAt: now.UTC()}, nil
		}
		if !isUniqueViolation(err) {
			return chatmodel.Session{}, fmt.Errorf("create session: %w", err)
		}
		// Lost the race; loop once more to adopt the winner's session.
	}

	session, err := s.findActiveSession(ctx, childID)
	if err != nil {
		return chatmodel.Session{}, fmt.Errorf("find active session after race: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) findActiveSession(ctx context.Context, childID string) (chatmodel.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, child_id, message_count, started_at
		 FROM conversation_sessions
		 WHERE child_id = ? AND is_active = 1`,
		childID)

	var session chatmodel.Session
	var startedAt string
	if err := row.Scan(&session.ID, &session.ChildID, &session.MessageCount, &startedAt); err != nil {
		return chatmodel.Session{}, err
	}
	session.Active = true
	session.StartedAt = parseTime(startedAt)
	return session, nil
}

// EndSession transitions a session from active to ended and stamps
// ended_at. Ending an already-ended session is a no-op.
func (s *SQLiteStore) EndSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversation_sessions
		 SET is_active = 0, ended_at = ?
		 WHERE id = ? AND is_active = 1`,
		formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// AppendMessage inserts a turn and bumps the session's message_count in
// one transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_messages (id, session_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, role, content, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversation_sessions SET message_count = message_count + 1 WHERE id = ?`,
		sessionID)
	if err != nil {
		return fmt.Errorf("bump message count: %w", err)
	}

	return tx.Commit()
}

// RecentMessages returns at most limit most-recent turns in chronological
// (oldest-first) order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]chatmodel.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM session_messages
		 WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var reversed []chatmodel.Turn
	for rows.Next() {
		var turn chatmodel.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		reversed = append(reversed, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	turns := make([]chatmodel.Turn, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		turns = append(turns, reversed[i])
	}
	return turns, nil
}

// MemoryContext returns the stored fact map for a child. Unknown children
// and unparseable stored blobs both yield an empty map.
func (s *SQLiteStore) MemoryContext(ctx context.Context, childID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT memory_context FROM children WHERE id = ?`, childID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory context: %w", err)
	}
	return decodeMemoryContext(raw), nil
}

// UpdateMemoryContext applies mutate to the stored context inside a
// transaction and persists the result as a full replace.
func (s *SQLiteStore) UpdateMemoryContext(ctx context.Context, childID string, mutate func(map[string]any) map[string]any) (map[string]any, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin memory update: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT memory_context FROM children WHERE id = ?`, childID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read memory context: %w", err)
	}

	updated := mutate(decodeMemoryContext(raw))
	encoded, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encode memory context: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE children SET memory_context = ? WHERE id = ?`, string(encoded), childID); err != nil {
		return nil, fmt.Errorf("write memory context: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit memory update: %w", err)
	}
	return updated, nil
}

func decodeMemoryContext(raw string) map[string]any {
	contextMap := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &contextMap); err != nil {
			return map[string]any{}
		}
	}
	return contextMap
}

// ChildProfile loads the registration record for a child.
func (s *SQLiteStore) ChildProfile(ctx context.Context, childID string) (*ChildProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, parent_id, name, age FROM children WHERE id = ?`, childID)

	var profile ChildProfile
	var age sql.NullInt64
	err := row.Scan(&profile.ID, &profile.ParentID, &profile.Name, &age)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read child profile: %w", err)
	}
	if age.Valid {
		value := int(age.Int64)
		profile.Age = &value
	}
	return &profile, nil
}

// UpsertChild registers or updates a child profile. The stored memory
// context is left untouched on update.
func (s *SQLiteStore) UpsertChild(ctx context.Context, profile ChildProfile) error {
	var age any
	if profile.Age != nil {
		age = *profile.Age
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO children (id, parent_id, name, age)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET parent_id = excluded.parent_id, name = excluded.name, age = excluded.age`,
		profile.ID, profile.ParentID, profile.Name, age)
	if err != nil {
		return fmt.Errorf("upsert child: %w", err)
	}
	return nil
}

// InsertAlert stores a new unread alert and returns its id.
func (s *SQLiteStore) InsertAlert(ctx context.Context, a alertmodel.Alert) (string, error) {
	id := uuid.NewString()
	var response any
	if a.Response != "" {
		response = a.Response
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parent_alerts (id, child_id, alert_type, severity, title, content, original_message, assistant_response, was_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, a.ChildID, string(a.Type), string(a.Severity), a.Title, a.Content, a.OriginalMessage, response, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return id, nil
}

// AlertsByParent lists a parent's alerts newest-first, joined with the
// child's display name.
func (s *SQLiteStore) AlertsByParent(ctx context.Context, parentID string, unreadOnly bool, limit int) ([]alertmodel.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT pa.id, pa.child_id, c.name, pa.alert_type, pa.severity, pa.title, pa.content,
	                 pa.original_message, pa.assistant_response, pa.was_read, pa.created_at, pa.read_at
	          FROM parent_alerts pa
	          JOIN children c ON pa.child_id = c.id
	          WHERE c.parent_id = ?`
	if unreadOnly {
		query += ` AND pa.was_read = 0`
	}
	query += ` ORDER BY pa.created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []alertmodel.Alert
	for rows.Next() {
		var a alertmodel.Alert
		var response, readAt sql.NullString
		var wasRead int
		var createdAt string
		err := rows.Scan(&a.ID, &a.ChildID, &a.ChildName, &a.Type, &a.Severity, &a.Title, &a.Content,
			&a.OriginalMessage, &response, &wasRead, &createdAt, &readAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Response = response.String
		a.WasRead = wasRead != 0
		a.CreatedAt = parseTime(createdAt)
		if readAt.Valid {
			t := parseTime(readAt.String)
			a.ReadAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead transitions an owned alert to read. It reports false for
// unknown ids and ownership mismatches, and true without touching read_at
// when the alert was already read.
func (s *SQLiteStore) MarkAlertRead(ctx context.Context, alertID, parentID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin mark read: %w", err)
	}
	defer tx.Rollback()

	var wasRead int
	err = tx.QueryRowContext(ctx,
		`SELECT pa.was_read
		 FROM parent_alerts pa
		 JOIN children c ON pa.child_id = c.id
		 WHERE pa.id = ? AND c.parent_id = ?`,
		alertID, parentID).Scan(&wasRead)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check alert ownership: %w", err)
	}
	if wasRead != 0 {
		return true, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE parent_alerts SET was_read = 1, read_at = ? WHERE id = ?`,
		formatTime(time.Now()), alertID)
	if err != nil {
		return false, fmt.Errorf("mark alert read: %w", err)
	}
	return true, tx.Commit()
}

// MarkAllAlertsRead transitions every unread alert owned by the parent
// and returns how many changed.
func (s *SQLiteStore) MarkAllAlertsRead(ctx context.Context, parentID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE parent_alerts
		 SET was_read = 1, read_at = ?
		 WHERE was_read = 0
		   AND child_id IN (SELECT id FROM children WHERE parent_id = ?)`,
		formatTime(time.Now()), parentID)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
