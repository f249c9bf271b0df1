package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/juanfcarrillo/pet-vet/libs/db"
	"github.com/juanfcarrillo/pet-vet/services/chat-service/internal/model"
)

type MessageRepository struct {
	pool *db.Pool
}

func NewMessageRepository(pool *db.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `id, conversation_id, sender_id, sender_name, recipient_id, recipient_name,
	content, type, status, is_edited, edited_at, created_at`

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, recipient_id, recipient_name, content, type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.SenderName,
		msg.RecipientID, msg.RecipientName, msg.Content, msg.Type, msg.Status,
	).Scan(&msg.CreatedAt)
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (model.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id)
	return scanMessage(row)
}

// ListConversation returns messages of a conversation newest first,
// with the total count for pagination.
func (r *MessageRepository) ListConversation(ctx context.Context, conversationID string, page, limit int) ([]model.Message, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE conversation_id = $1
	`, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// ListUserConversations returns, per conversation the user takes part
// in, the latest message and the user's unread count.
func (r *MessageRepository) ListUserConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (m.conversation_id)
			`+prefixedMessageColumns("m")+`,
			(
				SELECT count(*) FROM messages u
				WHERE u.conversation_id = m.conversation_id
					AND u.recipient_id = $1
					AND u.status <> 'read'
			) AS unread_count
		FROM messages m
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		ORDER BY m.conversation_id, m.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		msg, err := scanMessageFields(rows, &conv.UnreadCount)
		if err != nil {
			return nil, err
		}
		conv.ConversationID = msg.ConversationID
		conv.LastMessage = msg
		conversations = append(conversations, conv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return conversations, nil
}

func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *MessageRepository) Edit(ctx context.Context, id string, content string) (model.Message, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE messages
		SET content = $2,
			is_edited = true,
			edited_at = now()
		WHERE id = $1
		RETURNING `+messageColumns+`
	`, id, content)
	return scanMessage(row)
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM messages WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkConversationRead marks every message addressed to the user in a
// conversation as read and returns how many rows changed.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID string, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'read'
		WHERE conversation_id = $1
			AND recipient_id = $2
			AND status <> 'read'
	`, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages
		WHERE recipient_id = $1 AND status <> 'read'
	`, userID).Scan(&count)
	return count, err
}

// Search finds messages visible to the user whose content matches the
// query, newest first.
func (r *MessageRepository) Search(ctx context.Context, userID string, query string, limit int) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 OR recipient_id = $1)
			AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func prefixedMessageColumns(alias string) string {
	return alias + `.id, ` + alias + `.conversation_id, ` + alias + `.sender_id, ` + alias + `.sender_name, ` +
		alias + `.recipient_id, ` + alias + `.recipient_name, ` + alias + `.content, ` + alias + `.type, ` +
		alias + `.status, ` + alias + `.is_edited, ` + alias + `.edited_at, ` + alias + `.created_at`
}

func collectMessages(rows pgx.Rows) ([]model.Message, error) {
	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessageFields(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var msg model.Message
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName,
		&msg.RecipientID, &msg.RecipientName, &msg.Content, &msg.Type,
		&msg.Status, &msg.IsEdited, &msg.EditedAt, &msg.CreatedAt,
	)
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func scanMessageFields(row pgx.Row, extra ...any) (model.Message, error) {
	var msg model.Message
	dest := []any{
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName,
		&msg.RecipientID, &msg.RecipientName, &msg.Content, &msg.Type,
		&msg.Status, &msg.IsEdited, &msg.EditedAt, &msg.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
