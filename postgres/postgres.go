package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GetStream/teamchat/chat"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

var _ chat.Store = (*Postgres)(nil)

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the underlying connection pool.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// Migrate creates the tables and indexes if they do not exist.
func (pg *Postgres) Migrate(ctx context.Context) error {
	if _, err := pg.bun.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	models := []any{
		(*userProfile)(nil),
		(*workspace)(nil),
		(*channel)(nil),
		(*channelMember)(nil),
		(*message)(nil),
		(*reaction)(nil),
	}
	for _, m := range models {
		if _, err := pg.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Tables created before seq existed.
	if _, err := pg.bun.ExecContext(ctx, `ALTER TABLE messages ADD COLUMN IF NOT EXISTS seq BIGSERIAL`); err != nil {
		return fmt.Errorf("add messages.seq: %w", err)
	}

	indexes := []struct {
		name    string
		model   any
		columns []string
	}{
		{"messages_channel_created_idx", (*message)(nil), []string{"channel_id", "created_at"}},
		{"messages_dm_created_idx", (*message)(nil), []string{"user_id", "recipient_id", "created_at"}},
		{"reactions_message_idx", (*reaction)(nil), []string{"message_id"}},
	}
	for _, idx := range indexes {
		_, err := pg.bun.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			IfNotExists().
			Column(idx.columns...).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// GetProfile returns the profile with the given id.
func (pg *Postgres) GetProfile(ctx context.Context, id string) (chat.UserProfile, error) {
	var p userProfile
	err := pg.bun.NewSelect().Model(&p).Where("up.id = ?", id).Scan(ctx)
	if err != nil {
		return chat.UserProfile{}, storeErr("select profile", err)
	}
	return p.ChatProfile(), nil
}

// UpsertProfile inserts the profile or updates it when the id exists.
func (pg *Postgres) UpsertProfile(ctx context.Context, p chat.UserProfile) (chat.UserProfile, error) {
	m := &userProfile{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Status:      string(p.Status),
		UpdatedAt:   p.UpdatedAt,
	}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("display_name = EXCLUDED.display_name").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return chat.UserProfile{}, storeErr("upsert profile", err)
	}
	return m.ChatProfile(), nil
}

// ListProfiles returns every profile except excludeID, ordered by username.
func (pg *Postgres) ListProfiles(ctx context.Context, excludeID string) ([]chat.UserProfile, error) {
	var ps []userProfile
	q := pg.bun.NewSelect().Model(&ps).Order("up.username ASC", "up.id ASC")
	if excludeID != "" {
		q = q.Where("up.id <> ?", excludeID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]chat.UserProfile, len(ps))
	for i, p := range ps {
		out[i] = p.ChatProfile()
	}
	return out, nil
}

// FindWorkspace returns the oldest workspace with the given name.
func (pg *Postgres) FindWorkspace(ctx context.Context, name string) (chat.Workspace, error) {
	var w workspace
	err := pg.bun.NewSelect().
		Model(&w).
		Where("w.name = ?", name).
		Order("w.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return chat.Workspace{}, storeErr("select workspace", err)
	}
	return w.ChatWorkspace(), nil
}

// InsertWorkspace inserts a workspace. The returned workspace holds auto
// generated fields.
func (pg *Postgres) InsertWorkspace(ctx context.Context, w chat.Workspace) (chat.Workspace, error) {
	m := &workspace{
		Name:        w.Name,
		Description: w.Description,
		CreatedBy:   w.CreatedBy,
	}
	if _, err := pg.bun.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
		return chat.Workspace{}, storeErr("insert workspace", err)
	}
	return m.ChatWorkspace(), nil
}

// FindChannel returns the channel named name in workspaceID.
func (pg *Postgres) FindChannel(ctx context.Context, workspaceID, name string) (chat.Channel, error) {
	var c channel
	err := pg.bun.NewSelect().
		Model(&c).
		Where("c.workspace_id = ?", workspaceID).
		Where("c.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return chat.Channel{}, storeErr("select channel", err)
	}
	return c.ChatChannel(), nil
}

// InsertChannel inserts a channel.
func (pg *Postgres) InsertChannel(ctx context.Context, c chat.Channel) (chat.Channel, error) {
	m := &channel{
		WorkspaceID: c.WorkspaceID,
		Name:        c.Name,
		Description: c.Description,
		IsPrivate:   c.IsPrivate,
		CreatedBy:   c.CreatedBy,
	}
	if _, err := pg.bun.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
		return chat.Channel{}, storeErr("insert channel", err)
	}
	return m.ChatChannel(), nil
}

// ListPublicChannels returns every non-private channel.
func (pg *Postgres) ListPublicChannels(ctx context.Context) ([]chat.Channel, error) {
	var cs []channel
	err := pg.bun.NewSelect().
		Model(&cs).
		Where("c.is_private = FALSE").
		Order("c.created_at ASC", "c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return channels(cs), nil
}

// ListChannelsForUser returns the channels userID is a member of.
func (pg *Postgres) ListChannelsForUser(ctx context.Context, userID string) ([]chat.Channel, error) {
	var cs []channel
	err := pg.bun.NewSelect().
		Model(&cs).
		Join("JOIN channel_members AS cm ON cm.channel_id = c.id").
		Where("cm.user_id = ?", userID).
		Order("c.created_at ASC", "c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return channels(cs), nil
}

// InsertMembership inserts a channel membership.
func (pg *Postgres) InsertMembership(ctx context.Context, m chat.Membership) error {
	cm := &channelMember{
		UserID:    m.UserID,
		ChannelID: m.ChannelID,
	}
	if _, err := pg.bun.NewInsert().Model(cm).Exec(ctx); err != nil {
		return storeErr("insert membership", err)
	}
	return nil
}

// InsertMessage inserts a message into the database. The returned message
// holds auto generated fields, such as the message id.
func (pg *Postgres) InsertMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	m := &message{
		UserID:      msg.UserID,
		ChannelID:   msg.ChannelID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		MessageType: msg.Type,
	}
	if m.MessageType == "" {
		m.MessageType = chat.MessageTypeText
	}
	if _, err := pg.bun.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
		return chat.Message{}, storeErr("insert message", err)
	}
	return m.ChatMessage(), nil
}

// ListChannelMessages returns the most recent limit messages of a channel in
// ascending order.
func (pg *Postgres) ListChannelMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	q := pg.bun.NewSelect().Where("m.channel_id = ?", channelID)
	return pg.recentMessages(ctx, q, limit)
}

// ListDirectMessages returns the most recent limit messages exchanged
// between userA and userB in ascending order.
func (pg *Postgres) ListDirectMessages(ctx context.Context, userA, userB string, limit int) ([]chat.Message, error) {
	q := pg.bun.NewSelect().
		Where("m.channel_id IS NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("m.user_id = ? AND m.recipient_id = ?", userA, userB).
				WhereOr("m.user_id = ? AND m.recipient_id = ?", userB, userA)
		})
	return pg.recentMessages(ctx, q, limit)
}

// recentMessages selects the newest limit rows matching q, then reverses them
// so callers get ascending order.
func (pg *Postgres) recentMessages(ctx context.Context, q *bun.SelectQuery, limit int) ([]chat.Message, error) {
	var msgs []message
	if err := newestFirst(q.Model(&msgs), limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m.ChatMessage()
	}
	return out, nil
}

// newestFirst orders q by created_at descending. Rows inserted in one
// transaction share now(), so seq breaks ties in insert order.
func newestFirst(q *bun.SelectQuery, limit int) *bun.SelectQuery {
	return q.Order("m.created_at DESC", "m.seq DESC").Limit(limit)
}

// InsertReaction inserts a message reaction into the database.
func (pg *Postgres) InsertReaction(ctx context.Context, r chat.Reaction) (chat.Reaction, error) {
	rm := &reaction{
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
	}
	if _, err := pg.bun.NewInsert().Model(rm).Returning("*").Exec(ctx); err != nil {
		return chat.Reaction{}, storeErr("insert reaction", err)
	}
	return rm.ChatReaction(), nil
}

// DeleteReaction deletes the reaction identified by its composite key.
func (pg *Postgres) DeleteReaction(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	res, err := pg.bun.NewDelete().
		Model((*reaction)(nil)).
		Where("message_id = ?", messageID).
		Where("user_id = ?", userID).
		Where("emoji = ?", emoji).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListReactions returns all reactions on a message.
func (pg *Postgres) ListReactions(ctx context.Context, messageID string) ([]chat.Reaction, error) {
	var rs []reaction
	err := pg.bun.NewSelect().
		Model(&rs).
		Where("r.message_id = ?", messageID).
		Order("r.created_at ASC", "r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]chat.Reaction, len(rs))
	for i, r := range rs {
		out[i] = r.ChatReaction()
	}
	return out, nil
}

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

// storeErr maps driver errors onto the chat sentinels.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w: %w", op, chat.ErrNotFound, err)
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
		return fmt.Errorf("%s: %w: %w", op, chat.ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
