// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides aggregate persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// createSchema creates the tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		state TEXT NOT NULL,
		channels_used TEXT NOT NULL DEFAULT '[]',
		current_channel TEXT NOT NULL DEFAULT '',
		assigned_agent_id TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT '',
		required_skills TEXT NOT NULL DEFAULT '[]',
		sla_tier TEXT NOT NULL DEFAULT '',
		first_response_due_at TIMESTAMP,
		resolution_due_at TIMESTAMP,
		first_response_at TIMESTAMP,
		sla_breached INTEGER NOT NULL DEFAULT 0,
		customer_email TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		resolution_id TEXT NOT NULL DEFAULT '',
		message_count INTEGER NOT NULL DEFAULT 0,
		last_message_at TIMESTAMP,
		resolved_at TIMESTAMP,
		deflection_attempts INTEGER NOT NULL DEFAULT 0,
		last_deflection_at TIMESTAMP,
		deflection_successful INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_customer ON conversations(customer_id, created_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		channel TEXT NOT NULL,
		direction TEXT NOT NULL,
		sender_type TEXT NOT NULL,
		content TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'text/plain',
		intent TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT '',
		email_thread_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_email_thread ON messages(email_thread_id);

	CREATE TABLE IF NOT EXISTS resolutions (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		owning_team TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		eta_window_hours INTEGER NOT NULL DEFAULT 0,
		expected_resolution_at TIMESTAMP,
		sla_started_at TIMESTAMP NOT NULL,
		sla_total_paused_seconds INTEGER NOT NULL DEFAULT 0,
		root_cause TEXT NOT NULL DEFAULT '',
		fix_description TEXT NOT NULL DEFAULT '',
		is_recurrence INTEGER NOT NULL DEFAULT 0,
		parent_resolution_id TEXT NOT NULL DEFAULT '',
		recurrence_count INTEGER NOT NULL DEFAULT 0,
		last_internal_update_at TIMESTAMP,
		last_customer_update_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_resolutions_conversation ON resolutions(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS resolution_updates (
		id TEXT PRIMARY KEY,
		resolution_id TEXT NOT NULL REFERENCES resolutions(id),
		update_type TEXT NOT NULL,
		content TEXT NOT NULL,
		visibility TEXT NOT NULL,
		author_id TEXT NOT NULL DEFAULT '',
		author_source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_resolution_updates ON resolution_updates(resolution_id, created_at);

	CREATE TABLE IF NOT EXISTS swarm_records (
		id TEXT PRIMARY KEY,
		resolution_id TEXT NOT NULL UNIQUE,
		channel_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		archived_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS resolution_archives (
		id TEXT PRIMARY KEY,
		resolution_id TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// encodeList serializes a string slice as JSON for a TEXT column.
func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeList deserializes a JSON TEXT column into a string slice.
func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

// nullTime converts *time.Time to a driver-friendly value.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// scanTime converts a nullable column back to *time.Time.
func scanTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// CreateConversation inserts a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, customer_id, state, channels_used, current_channel,
			assigned_agent_id, intent, severity, sentiment, required_skills,
			sla_tier, first_response_due_at, resolution_due_at, first_response_at,
			sla_breached, customer_email, customer_phone, resolution_id,
			message_count, last_message_at, resolved_at,
			deflection_attempts, last_deflection_at, deflection_successful,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.CustomerID, conv.State, encodeList(conv.ChannelsUsed), conv.CurrentChannel,
		conv.AssignedAgentID, conv.Intent, conv.Severity, conv.Sentiment, encodeList(conv.RequiredSkills),
		conv.SLATier, nullTime(conv.FirstResponseDueAt), nullTime(conv.ResolutionDueAt), nullTime(conv.FirstResponseAt),
		conv.SLABreached, conv.CustomerEmail, conv.CustomerPhone, conv.ResolutionID,
		conv.MessageCount, nullTime(conv.LastMessageAt), nullTime(conv.ResolvedAt),
		conv.DeflectionAttempts, nullTime(conv.LastDeflectionAt), conv.DeflectionSuccessful,
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// conversationColumns is the select list matching scanConversation.
const conversationColumns = `
	id, customer_id, state, channels_used, current_channel,
	assigned_agent_id, intent, severity, sentiment, required_skills,
	sla_tier, first_response_due_at, resolution_due_at, first_response_at,
	sla_breached, customer_email, customer_phone, resolution_id,
	message_count, last_message_at, resolved_at,
	deflection_attempts, last_deflection_at, deflection_successful,
	created_at, updated_at`

// scanConversation reads one conversation row.
func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var conv Conversation
	var channels, skills string
	var frDue, resDue, frAt, lastMsg, resolved, lastDefl sql.NullTime

	err := row.Scan(
		&conv.ID, &conv.CustomerID, &conv.State, &channels, &conv.CurrentChannel,
		&conv.AssignedAgentID, &conv.Intent, &conv.Severity, &conv.Sentiment, &skills,
		&conv.SLATier, &frDue, &resDue, &frAt,
		&conv.SLABreached, &conv.CustomerEmail, &conv.CustomerPhone, &conv.ResolutionID,
		&conv.MessageCount, &lastMsg, &resolved,
		&conv.DeflectionAttempts, &lastDefl, &conv.DeflectionSuccessful,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.ChannelsUsed = decodeList(channels)
	conv.RequiredSkills = decodeList(skills)
	conv.FirstResponseDueAt = scanTime(frDue)
	conv.ResolutionDueAt = scanTime(resDue)
	conv.FirstResponseAt = scanTime(frAt)
	conv.LastMessageAt = scanTime(lastMsg)
	conv.ResolvedAt = scanTime(resolved)
	conv.LastDeflectionAt = scanTime(lastDefl)
	return &conv, nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// UpdateConversation rewrites a conversation row.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			customer_id = ?, state = ?, channels_used = ?, current_channel = ?,
			assigned_agent_id = ?, intent = ?, severity = ?, sentiment = ?,
			required_skills = ?, sla_tier = ?, first_response_due_at = ?,
			resolution_due_at = ?, first_response_at = ?, sla_breached = ?,
			customer_email = ?, customer_phone = ?, resolution_id = ?,
			message_count = ?, last_message_at = ?, resolved_at = ?,
			deflection_attempts = ?, last_deflection_at = ?, deflection_successful = ?,
			updated_at = ?
		WHERE id = ?`,
		conv.CustomerID, conv.State, encodeList(conv.ChannelsUsed), conv.CurrentChannel,
		conv.AssignedAgentID, conv.Intent, conv.Severity, conv.Sentiment,
		encodeList(conv.RequiredSkills), conv.SLATier, nullTime(conv.FirstResponseDueAt),
		nullTime(conv.ResolutionDueAt), nullTime(conv.FirstResponseAt), conv.SLABreached,
		conv.CustomerEmail, conv.CustomerPhone, conv.ResolutionID,
		conv.MessageCount, nullTime(conv.LastMessageAt), nullTime(conv.ResolvedAt),
		conv.DeflectionAttempts, nullTime(conv.LastDeflectionAt), conv.DeflectionSuccessful,
		time.Now(), conv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConversationsByCustomer returns a customer's conversations, newest first.
func (s *SQLiteStore) ListConversationsByCustomer(ctx context.Context, customerID string, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE customer_id = ? ORDER BY created_at DESC LIMIT ?",
		customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// FindConversationByEmailThread locates the conversation holding a message
// with the given email thread id.
func (s *SQLiteStore) FindConversationByEmailThread(ctx context.Context, threadID string) (*Conversation, error) {
	if threadID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE id = (
			SELECT conversation_id FROM messages
			WHERE email_thread_id = ?
			ORDER BY created_at DESC LIMIT 1
		)`, threadID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation by thread: %w", err)
	}
	return conv, nil
}

// SaveMessage inserts a message row.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, channel, direction, sender_type,
			content, content_type, intent, severity, sentiment,
			email_thread_id, session_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Channel, msg.Direction, msg.SenderType,
		msg.Content, msg.ContentType, msg.Intent, msg.Severity, msg.Sentiment,
		msg.EmailThreadID, msg.SessionID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessagesByConversation returns a conversation's messages, oldest first.
func (s *SQLiteStore) ListMessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, channel, direction, sender_type,
			content, content_type, intent, severity, sentiment,
			email_thread_id, session_id, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Channel, &msg.Direction, &msg.SenderType,
			&msg.Content, &msg.ContentType, &msg.Intent, &msg.Severity, &msg.Sentiment,
			&msg.EmailThreadID, &msg.SessionID, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// resolutionColumns is the select list matching scanResolution.
const resolutionColumns = `
	id, conversation_id, issue_type, owning_team, owner_id, status, priority,
	eta_window_hours, expected_resolution_at, sla_started_at, sla_total_paused_seconds,
	root_cause, fix_description, is_recurrence, parent_resolution_id, recurrence_count,
	last_internal_update_at, last_customer_update_at, created_at, updated_at, resolved_at`

// scanResolution reads one resolution row.
func scanResolution(row interface{ Scan(...any) error }) (*Resolution, error) {
	var r Resolution
	var expected, lastInternal, lastCustomer, resolved sql.NullTime

	err := row.Scan(
		&r.ID, &r.ConversationID, &r.IssueType, &r.OwningTeam, &r.OwnerID, &r.Status, &r.Priority,
		&r.EtaWindowHours, &expected, &r.SLAStartedAt, &r.SLATotalPausedSeconds,
		&r.RootCause, &r.FixDescription, &r.IsRecurrence, &r.ParentResolutionID, &r.RecurrenceCount,
		&lastInternal, &lastCustomer, &r.CreatedAt, &r.UpdatedAt, &resolved,
	)
	if err != nil {
		return nil, err
	}
	r.ExpectedResolutionAt = scanTime(expected)
	r.LastInternalUpdateAt = scanTime(lastInternal)
	r.LastCustomerUpdateAt = scanTime(lastCustomer)
	r.ResolvedAt = scanTime(resolved)
	return &r, nil
}

// CreateResolution inserts a resolution row.
func (s *SQLiteStore) CreateResolution(ctx context.Context, res *Resolution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions (
			id, conversation_id, issue_type, owning_team, owner_id, status, priority,
			eta_window_hours, expected_resolution_at, sla_started_at, sla_total_paused_seconds,
			root_cause, fix_description, is_recurrence, parent_resolution_id, recurrence_count,
			last_internal_update_at, last_customer_update_at, created_at, updated_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.ConversationID, res.IssueType, res.OwningTeam, res.OwnerID, res.Status, res.Priority,
		res.EtaWindowHours, nullTime(res.ExpectedResolutionAt), res.SLAStartedAt, res.SLATotalPausedSeconds,
		res.RootCause, res.FixDescription, res.IsRecurrence, res.ParentResolutionID, res.RecurrenceCount,
		nullTime(res.LastInternalUpdateAt), nullTime(res.LastCustomerUpdateAt),
		res.CreatedAt, res.UpdatedAt, nullTime(res.ResolvedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting resolution: %w", err)
	}
	return nil
}

// GetResolution retrieves a resolution by id.
func (s *SQLiteStore) GetResolution(ctx context.Context, id string) (*Resolution, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+resolutionColumns+" FROM resolutions WHERE id = ?", id)
	r, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying resolution: %w", err)
	}
	return r, nil
}

// UpdateResolution rewrites a resolution row.
func (s *SQLiteStore) UpdateResolution(ctx context.Context, res *Resolution) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE resolutions SET
			conversation_id = ?, issue_type = ?, owning_team = ?, owner_id = ?,
			status = ?, priority = ?, eta_window_hours = ?, expected_resolution_at = ?,
			sla_started_at = ?, sla_total_paused_seconds = ?, root_cause = ?,
			fix_description = ?, is_recurrence = ?, parent_resolution_id = ?,
			recurrence_count = ?, last_internal_update_at = ?, last_customer_update_at = ?,
			updated_at = ?, resolved_at = ?
		WHERE id = ?`,
		res.ConversationID, res.IssueType, res.OwningTeam, res.OwnerID,
		res.Status, res.Priority, res.EtaWindowHours, nullTime(res.ExpectedResolutionAt),
		res.SLAStartedAt, res.SLATotalPausedSeconds, res.RootCause,
		res.FixDescription, res.IsRecurrence, res.ParentResolutionID,
		res.RecurrenceCount, nullTime(res.LastInternalUpdateAt), nullTime(res.LastCustomerUpdateAt),
		time.Now(), nullTime(res.ResolvedAt), res.ID,
	)
	if err != nil {
		return fmt.Errorf("updating resolution: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetResolutionByConversation returns the newest resolution for a conversation.
func (s *SQLiteStore) GetResolutionByConversation(ctx context.Context, conversationID string) (*Resolution, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+resolutionColumns+" FROM resolutions WHERE conversation_id = ? ORDER BY created_at DESC LIMIT 1",
		conversationID)
	r, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying resolution by conversation: %w", err)
	}
	return r, nil
}

// ListOpenResolutions returns non-terminal resolutions, newest first.
// Used by the admin CLI; not part of the Store interface.
func (s *SQLiteStore) ListOpenResolutions(ctx context.Context, limit int) ([]*Resolution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+resolutionColumns+` FROM resolutions
		WHERE status NOT IN ('RESOLVED', 'WONT_FIX', 'DUPLICATE')
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying open resolutions: %w", err)
	}
	defer rows.Close()

	var out []*Resolution
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resolution: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveResolutionUpdate inserts an append-only audit record.
func (s *SQLiteStore) SaveResolutionUpdate(ctx context.Context, upd *ResolutionUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_updates (
			id, resolution_id, update_type, content, visibility,
			author_id, author_source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		upd.ID, upd.ResolutionID, upd.UpdateType, upd.Content, upd.Visibility,
		upd.AuthorID, upd.AuthorSource, upd.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting resolution update: %w", err)
	}
	return nil
}

// ListResolutionUpdates returns a resolution's audit trail, oldest first.
func (s *SQLiteStore) ListResolutionUpdates(ctx context.Context, resolutionID string) ([]*ResolutionUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resolution_id, update_type, content, visibility,
			author_id, author_source, created_at
		FROM resolution_updates WHERE resolution_id = ?
		ORDER BY created_at ASC`, resolutionID)
	if err != nil {
		return nil, fmt.Errorf("querying resolution updates: %w", err)
	}
	defer rows.Close()

	var out []*ResolutionUpdate
	for rows.Next() {
		var u ResolutionUpdate
		if err := rows.Scan(
			&u.ID, &u.ResolutionID, &u.UpdateType, &u.Content, &u.Visibility,
			&u.AuthorID, &u.AuthorSource, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning resolution update: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// CreateSwarmRecord inserts a swarm channel record.
func (s *SQLiteStore) CreateSwarmRecord(ctx context.Context, rec *SwarmRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swarm_records (id, resolution_id, channel_id, status, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ResolutionID, rec.ChannelID, rec.Status, rec.CreatedAt, nullTime(rec.ArchivedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting swarm record: %w", err)
	}
	return nil
}

// UpdateSwarmRecord rewrites a swarm channel record.
func (s *SQLiteStore) UpdateSwarmRecord(ctx context.Context, rec *SwarmRecord) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE swarm_records SET channel_id = ?, status = ?, archived_at = ?
		WHERE resolution_id = ?`,
		rec.ChannelID, rec.Status, nullTime(rec.ArchivedAt), rec.ResolutionID,
	)
	if err != nil {
		return fmt.Errorf("updating swarm record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSwarmByResolution retrieves the swarm record for a resolution.
func (s *SQLiteStore) GetSwarmByResolution(ctx context.Context, resolutionID string) (*SwarmRecord, error) {
	var rec SwarmRecord
	var archived sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, resolution_id, channel_id, status, created_at, archived_at
		FROM swarm_records WHERE resolution_id = ?`, resolutionID).Scan(
		&rec.ID, &rec.ResolutionID, &rec.ChannelID, &rec.Status, &rec.CreatedAt, &archived,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying swarm record: %w", err)
	}
	rec.ArchivedAt = scanTime(archived)
	return &rec, nil
}

// SaveResolutionArchive inserts an offline-learning snapshot.
func (s *SQLiteStore) SaveResolutionArchive(ctx context.Context, arc *ResolutionArchive) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_archives (id, resolution_id, data, created_at)
		VALUES (?, ?, ?, ?)`,
		arc.ID, arc.ResolutionID, arc.Data, arc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting resolution archive: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
