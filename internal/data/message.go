package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// messageRepo implements the message store on sqlite. A single mutex
// serializes all access; it is never held across a network call.
type messageRepo struct {
	mu sync.Mutex
	db *sql.DB
}

// NewMessageRepo opens (or creates) the sqlite store at dbPath
func NewMessageRepo(dbPath string) (repo.MessageRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			msg_id TEXT,
			message_type TEXT NOT NULL,
			user_id TEXT,
			sender_name TEXT,
			group_id TEXT,
			group_name TEXT,
			content TEXT NOT NULL,
			raw_json TEXT,
			processed INTEGER DEFAULT 0,
			received_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_processed ON messages(processed, received_at)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id)`)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_ids TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			email_sent INTEGER DEFAULT 0,
			email_sent_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create summaries table: %w", err)
	}

	fmt.Println("[Store] Database initialized")
	return &messageRepo{db: db}, nil
}

const messageColumns = `id, msg_id, message_type, user_id, sender_name, group_id, group_name, content, raw_json, processed, received_at`

// Append stores a new unprocessed message
func (r *messageRepo) Append(ctx context.Context, msg *domain.CanonicalMessage) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (msg_id, message_type, user_id, sender_name, group_id, group_name, content, raw_json, processed, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, msg.ExternalID, string(msg.Kind), msg.SenderID, msg.SenderName, msg.GroupID, msg.GroupName, msg.Content, msg.RawJSON, msg.ReceivedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}
	return res.LastInsertId()
}

// ListUnprocessed returns unprocessed messages oldest first
func (r *messageRepo) ListUnprocessed(ctx context.Context, limit int) ([]*domain.CanonicalMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE processed = 0
		ORDER BY received_at ASC, id ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*domain.CanonicalMessage, error) {
	var messages []*domain.CanonicalMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*domain.CanonicalMessage, error) {
	var msg domain.CanonicalMessage
	var kind string
	var processed int
	var receivedAt int64
	if err := row.Scan(&msg.ID, &msg.ExternalID, &kind, &msg.SenderID, &msg.SenderName,
		&msg.GroupID, &msg.GroupName, &msg.Content, &msg.RawJSON, &processed, &receivedAt); err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	msg.Kind = domain.MessageKind(kind)
	msg.Processed = processed != 0
	msg.ReceivedAt = time.Unix(receivedAt, 0)
	return &msg, nil
}

// MarkProcessed flags messages processed in one transaction
func (r *messageRepo) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := inClause(`UPDATE messages SET processed = 1 WHERE id IN (%s)`, ids)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark messages processed: %w", err)
	}
	return nil
}

// CommitCycle marks messages processed and records the delivered summary
// atomically. Either both writes land or neither does.
func (r *messageRepo) CommitCycle(ctx context.Context, ids []int64, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer tx.Rollback()

	if len(ids) > 0 {
		query, args := inClause(`UPDATE messages SET processed = 1 WHERE id IN (%s)`, ids)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to mark messages processed: %w", err)
		}
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode message ids: %w", err)
	}
	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO summaries (message_ids, payload, created_at, email_sent, email_sent_at)
		VALUES (?, ?, ?, 1, ?)
	`, string(idsJSON), payload, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert summary record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}
	return nil
}

// Counts returns the dashboard counters
func (r *messageRepo) Counts(ctx context.Context) (*domain.Counts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c domain.Counts
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE processed = 0`).Scan(&c.Unprocessed); err != nil {
		return nil, fmt.Errorf("failed to count unprocessed: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&c.Total); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries WHERE email_sent = 1`).Scan(&c.EmailsSent); err != nil {
		return nil, fmt.Errorf("failed to count sent emails: %w", err)
	}
	return &c, nil
}

// SetProcessed overrides the processed flag of one message
func (r *messageRepo) SetProcessed(ctx context.Context, id int64, processed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `UPDATE messages SET processed = ? WHERE id = ?`, boolInt(processed), id)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("message %d not found", id)
	}
	return nil
}

// BatchSetProcessed overrides the processed flag of many messages at once
func (r *messageRepo) BatchSetProcessed(ctx context.Context, ids []int64, processed bool) error {
	if len(ids) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	args[0] = boolInt(processed)
	for i, id := range ids {
		placeholders[i] = "?"
		args[i+1] = id
	}
	query := fmt.Sprintf(`UPDATE messages SET processed = ? WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to batch update message status: %w", err)
	}
	return nil
}

// BatchDelete removes the given messages
func (r *messageRepo) BatchDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := inClause(`DELETE FROM messages WHERE id IN (%s)`, ids)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to batch delete messages: %w", err)
	}
	return nil
}

// GetByID returns one message by row id
func (r *messageRepo) GetByID(ctx context.Context, id int64) (*domain.CanonicalMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d not found", id)
		}
		return nil, err
	}
	return msg, nil
}

// ClearAll deletes every message; summary records stay
func (r *messageRepo) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	fmt.Println("[Store] All messages cleared")
	return nil
}

// ListMessages returns a page of messages newest first, plus the total count
func (r *messageRepo) ListMessages(ctx context.Context, offset, limit int) ([]*domain.CanonicalMessage, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		ORDER BY received_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// ListSummaries returns a page of summary records newest first
func (r *messageRepo) ListSummaries(ctx context.Context, offset, limit int) ([]*domain.SummaryRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count summaries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_ids, payload, created_at, email_sent, email_sent_at
		FROM summaries
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var records []*domain.SummaryRecord
	for rows.Next() {
		var rec domain.SummaryRecord
		var idsJSON string
		var createdAt int64
		var emailSent int
		var sentAt sql.NullInt64
		if err := rows.Scan(&rec.ID, &idsJSON, &rec.Payload, &createdAt, &emailSent, &sentAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan summary record: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &rec.MessageIDs); err != nil {
			rec.MessageIDs = nil
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.EmailSent = emailSent != 0
		if sentAt.Valid {
			rec.EmailSentAt = time.Unix(sentAt.Int64, 0)
		}
		records = append(records, &rec)
	}
	return records, total, rows.Err()
}

// ListGroups returns every distinct group seen in the store, with the name
// from its most recent message
func (r *messageRepo) ListGroups(ctx context.Context) ([]repo.GroupEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, group_name
		FROM messages
		WHERE group_id != '' AND id IN (
			SELECT MAX(id) FROM messages WHERE group_id != '' GROUP BY group_id
		)
		ORDER BY group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []repo.GroupEntry
	for rows.Next() {
		var g repo.GroupEntry
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		if g.Name == "" {
			g.Name = g.ID
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// LatestGroupName returns the most recent non-empty stored name for a group
func (r *messageRepo) LatestGroupName(ctx context.Context, groupID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var name string
	err := r.db.QueryRowContext(ctx, `
		SELECT group_name FROM messages
		WHERE group_id = ? AND group_name != ''
		ORDER BY id DESC LIMIT 1
	`, groupID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query group name: %w", err)
	}
	return name, nil
}

// Close closes the underlying database
func (r *messageRepo) Close() error {
	return r.db.Close()
}

func inClause(format string, ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return fmt.Sprintf(format, strings.Join(placeholders, ",")), args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
