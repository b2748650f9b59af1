// Package club keeps a local sqlite mirror of the community: members
// with their role sets and activity counters, channel messages,
// documented roles, job postings and billing activities. The syncs
// read and write through this store instead of hitting the chat
// platform for everything repeatedly.
package club

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type Member struct {
	ID                  string
	DisplayName         string
	Tag                 string
	Mention             string
	JoinedAt            time.Time
	InitialRoles        []string
	UpdatedRoles        []string
	HasAvatar           bool
	AvatarPath          string
	IntroMessageID      string
	Coupon              string
	MessagesCount       int
	RecentMessagesCount int
	UpvotesCount        int
	RecentUpvotesCount  int
	FirstSeenOn         time.Time
	IsBot               bool
}

// Roles returns the member's current role set: the updated one if a
// reconciliation already ran, the initial one otherwise.
func (m Member) Roles() []string {
	if m.UpdatedRoles != nil {
		return m.UpdatedRoles
	}
	return m.InitialRoles
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	serialized, err := json.Marshal(values)
	return string(serialized), err
}

func (s Store) UpsertMember(ctx context.Context, member Member) error {
	initialRoles, err := marshalStrings(member.InitialRoles)
	if err != nil {
		return err
	}
	// nil means no reconciliation ran yet, kept as NULL
	var updatedRoles any
	if member.UpdatedRoles != nil {
		serialized, err := marshalStrings(member.UpdatedRoles)
		if err != nil {
			return err
		}
		updatedRoles = serialized
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO members (
			id, display_name, tag, mention, joined_at,
			initial_roles, updated_roles, has_avatar, avatar_path,
			intro_message_id, coupon,
			messages_count, recent_messages_count,
			upvotes_count, recent_upvotes_count,
			first_seen_on, is_bot
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			tag = excluded.tag,
			mention = excluded.mention,
			joined_at = excluded.joined_at,
			initial_roles = excluded.initial_roles,
			updated_roles = excluded.updated_roles,
			has_avatar = excluded.has_avatar,
			avatar_path = excluded.avatar_path,
			intro_message_id = excluded.intro_message_id,
			coupon = excluded.coupon,
			messages_count = excluded.messages_count,
			recent_messages_count = excluded.recent_messages_count,
			upvotes_count = excluded.upvotes_count,
			recent_upvotes_count = excluded.recent_upvotes_count,
			first_seen_on = min(excluded.first_seen_on, members.first_seen_on),
			is_bot = excluded.is_bot`,
		member.ID, member.DisplayName, member.Tag, member.Mention,
		member.JoinedAt.Unix(), initialRoles, updatedRoles,
		member.HasAvatar, member.AvatarPath,
		member.IntroMessageID, member.Coupon,
		member.MessagesCount, member.RecentMessagesCount,
		member.UpvotesCount, member.RecentUpvotesCount,
		member.FirstSeenOn.Unix(), member.IsBot,
	)
	return err
}

const memberColumns = `id, display_name, tag, mention, joined_at,
	initial_roles, updated_roles, has_avatar, avatar_path,
	intro_message_id, coupon,
	messages_count, recent_messages_count,
	upvotes_count, recent_upvotes_count,
	first_seen_on, is_bot`

func scanMember(row interface{ Scan(...any) error }) (Member, error) {
	var m Member
	var joinedAt, firstSeenOn int64
	var initialRoles string
	var updatedRoles sql.NullString
	err := row.Scan(
		&m.ID, &m.DisplayName, &m.Tag, &m.Mention, &joinedAt,
		&initialRoles, &updatedRoles, &m.HasAvatar, &m.AvatarPath,
		&m.IntroMessageID, &m.Coupon,
		&m.MessagesCount, &m.RecentMessagesCount,
		&m.UpvotesCount, &m.RecentUpvotesCount,
		&firstSeenOn, &m.IsBot,
	)
	if err != nil {
		return Member{}, err
	}
	m.JoinedAt = time.Unix(joinedAt, 0).UTC()
	m.FirstSeenOn = time.Unix(firstSeenOn, 0).UTC()
	if err := json.Unmarshal([]byte(initialRoles), &m.InitialRoles); err != nil {
		return Member{}, err
	}
	if updatedRoles.Valid {
		if err := json.Unmarshal([]byte(updatedRoles.String), &m.UpdatedRoles); err != nil {
			return Member{}, err
		}
		if m.UpdatedRoles == nil {
			m.UpdatedRoles = []string{}
		}
	}
	return m, nil
}

func (s Store) GetMember(ctx context.Context, id string) (Member, error) {
	row := s.db.QueryRowContext(
		ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return scanMember(row)
}

// ListMembers returns every non-bot member ordered by id.
func (s Store) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(
		ctx, `SELECT `+memberColumns+` FROM members WHERE is_bot = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s Store) UpdateMemberRoles(ctx context.Context, id string, roles []string) error {
	serialized, err := marshalStrings(roles)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx, `UPDATE members SET updated_roles = ? WHERE id = ?`, serialized, id)
	return err
}

func (s Store) SetMemberAvatar(ctx context.Context, id, avatarPath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE members SET has_avatar = ?, avatar_path = ? WHERE id = ?`,
		avatarPath != "", avatarPath, id)
	return err
}

// TopMembersLimit sizes the "top N" role buckets: 5% of the non-bot
// member count, rounded up, never below 5.
func (s Store) TopMembersLimit(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT count(*) FROM members WHERE is_bot = 0`)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	limit := int(math.Ceil(float64(count) * 0.05))
	if limit < 5 {
		limit = 5
	}
	return limit, nil
}

type StoredMessage struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	Reactions map[string]int
	Type      int
}

func (s Store) SaveMessage(ctx context.Context, msg StoredMessage) error {
	reactions := msg.Reactions
	if reactions == nil {
		reactions = map[string]int{}
	}
	serialized, err := json.Marshal(reactions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO messages (id, channel_id, author_id, content, created_at, reactions, type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			reactions = excluded.reactions`,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Content,
		msg.CreatedAt.Unix(), string(serialized), msg.Type,
	)
	return err
}

// ChannelMessagesSince returns the channel's messages created at or
// after the given time, oldest first.
func (s Store) ChannelMessagesSince(ctx context.Context, channelID string, since time.Time) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, channel_id, author_id, content, created_at, reactions, type
		 FROM messages WHERE channel_id = ? AND created_at >= ?
		 ORDER BY created_at, id`,
		channelID, since.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var createdAt int64
		var reactions string
		err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.AuthorID,
			&msg.Content, &createdAt, &reactions, &msg.Type)
		if err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(reactions), &msg.Reactions); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MemberStats are the activity counters derived from the mirrored
// messages.
type MemberStats struct {
	MessagesCount       int
	RecentMessagesCount int
	UpvotesCount        int
	RecentUpvotesCount  int
}

// MessageStats aggregates per-author counters over every mirrored
// message. Upvotes are all reactions except the downvote.
func (s Store) MessageStats(ctx context.Context, recentSince time.Time) (map[string]MemberStats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT author_id, created_at, reactions FROM messages`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]MemberStats{}
	for rows.Next() {
		var authorID, reactions string
		var createdAt int64
		if err := rows.Scan(&authorID, &createdAt, &reactions); err != nil {
			return nil, err
		}
		var counts map[string]int
		if err := json.Unmarshal([]byte(reactions), &counts); err != nil {
			return nil, err
		}
		upvotes := 0
		for emoji, count := range counts {
			if emoji == "👎" {
				continue
			}
			upvotes += count
		}

		stats := result[authorID]
		stats.MessagesCount++
		stats.UpvotesCount += upvotes
		if createdAt >= recentSince.Unix() {
			stats.RecentMessagesCount++
			stats.RecentUpvotesCount += upvotes
		}
		result[authorID] = stats
	}
	return result, rows.Err()
}

// IntroMessageIDs maps author ids to their earliest regular message in
// the given channel.
func (s Store) IntroMessageIDs(ctx context.Context, channelID string) (map[string]string, error) {
	// sqlite picks the bare column from the row that wins min()
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT author_id, id, min(created_at) FROM messages
		 WHERE channel_id = ? AND type = 0
		 GROUP BY author_id`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]string{}
	for rows.Next() {
		var authorID, messageID string
		var createdAt int64
		if err := rows.Scan(&authorID, &messageID, &createdAt); err != nil {
			return nil, err
		}
		result[authorID] = messageID
	}
	return result, rows.Err()
}

type DocumentedRole struct {
	ID          string
	Position    int
	Name        string
	Mention     string
	Slug        string
	Description string
	Emoji       string
}

// SaveDocumentedRoles replaces the whole documented role register.
func (s Store) SaveDocumentedRoles(ctx context.Context, roles []DocumentedRole) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documented_roles`); err != nil {
		return err
	}
	for _, role := range roles {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO documented_roles (id, position, name, mention, slug, description, emoji)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			role.ID, role.Position, role.Name, role.Mention,
			role.Slug, role.Description, role.Emoji,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) ListDocumentedRoles(ctx context.Context) ([]DocumentedRole, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, position, name, mention, slug, description, emoji
		 FROM documented_roles ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []DocumentedRole
	for rows.Next() {
		var role DocumentedRole
		err := rows.Scan(&role.ID, &role.Position, &role.Name,
			&role.Mention, &role.Slug, &role.Description, &role.Emoji)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s Store) GetDocumentedRole(ctx context.Context, slug string) (DocumentedRole, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, position, name, mention, slug, description, emoji
		 FROM documented_roles WHERE slug = ?`,
		slug)
	var role DocumentedRole
	err := row.Scan(&role.ID, &role.Position, &role.Name,
		&role.Mention, &role.Slug, &role.Description, &role.Emoji)
	return role, err
}

type Posting struct {
	ID              string
	Title           string
	URL             string
	CompanyName     string
	CompanyURL      string
	LocationsRaw    []string
	Locations       []string
	EmploymentTypes []string
	PostedAt        time.Time
	DescriptionHTML string
	DescriptionText string
	Remote          bool
	Source          string
	FirstSeenOn     time.Time
	LastSeenOn      time.Time
}

func (s Store) UpsertPosting(ctx context.Context, posting Posting) error {
	locationsRaw, err := marshalStrings(posting.LocationsRaw)
	if err != nil {
		return err
	}
	locations, err := marshalStrings(posting.Locations)
	if err != nil {
		return err
	}
	employmentTypes, err := marshalStrings(posting.EmploymentTypes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO job_postings (
			id, title, url, company_name, company_url,
			locations_raw, locations, employment_types, posted_at,
			description_html, description_text, remote, source,
			first_seen_on, last_seen_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			company_name = excluded.company_name,
			company_url = excluded.company_url,
			locations_raw = excluded.locations_raw,
			locations = excluded.locations,
			employment_types = excluded.employment_types,
			posted_at = excluded.posted_at,
			description_html = excluded.description_html,
			description_text = excluded.description_text,
			remote = excluded.remote,
			source = excluded.source,
			first_seen_on = min(excluded.first_seen_on, job_postings.first_seen_on),
			last_seen_on = max(excluded.last_seen_on, job_postings.last_seen_on)`,
		posting.ID, posting.Title, posting.URL,
		posting.CompanyName, posting.CompanyURL,
		locationsRaw, locations, employmentTypes, posting.PostedAt.Unix(),
		posting.DescriptionHTML, posting.DescriptionText,
		posting.Remote, posting.Source,
		posting.FirstSeenOn.Unix(), posting.LastSeenOn.Unix(),
	)
	return err
}

func (s Store) ListPostings(ctx context.Context) ([]Posting, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, title, url, company_name, company_url,
			locations_raw, locations, employment_types, posted_at,
			description_html, description_text, remote, source,
			first_seen_on, last_seen_on
		 FROM job_postings ORDER BY posted_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		var p Posting
		var postedAt, firstSeenOn, lastSeenOn int64
		var locationsRaw, locations, employmentTypes string
		err := rows.Scan(&p.ID, &p.Title, &p.URL,
			&p.CompanyName, &p.CompanyURL,
			&locationsRaw, &locations, &employmentTypes, &postedAt,
			&p.DescriptionHTML, &p.DescriptionText, &p.Remote, &p.Source,
			&firstSeenOn, &lastSeenOn)
		if err != nil {
			return nil, err
		}
		p.PostedAt = time.Unix(postedAt, 0).UTC()
		p.FirstSeenOn = time.Unix(firstSeenOn, 0).UTC()
		p.LastSeenOn = time.Unix(lastSeenOn, 0).UTC()
		if err := json.Unmarshal([]byte(locationsRaw), &p.LocationsRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(locations), &p.Locations); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(employmentTypes), &p.EmploymentTypes); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

type Activity struct {
	AccountID  string
	Type       string
	HappenedAt time.Time
	Coupon     string
}

func (s Store) SaveActivity(ctx context.Context, activity Activity) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subscription_activities (account_id, type, happened_at, coupon)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id, type, happened_at) DO UPDATE SET coupon = excluded.coupon`,
		activity.AccountID, activity.Type, activity.HappenedAt.Unix(), activity.Coupon,
	)
	return err
}

func (s Store) ListActivities(ctx context.Context, accountID string) ([]Activity, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT account_id, type, happened_at, coupon
		 FROM subscription_activities WHERE account_id = ?
		 ORDER BY happened_at, type`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var happenedAt int64
		if err := rows.Scan(&a.AccountID, &a.Type, &happenedAt, &a.Coupon); err != nil {
			return nil, err
		}
		a.HappenedAt = time.Unix(happenedAt, 0).UTC()
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// Subscription source kinds.
const (
	SourceReferrer = "referrer"
	SourceOrigin   = "origin"
)

// SaveSubscriptionSources replaces one kind of signup-source register
// (referrers or origins, keyed by account email) wholesale.
func (s Store) SaveSubscriptionSources(ctx context.Context, kind string, byEmail map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_sources WHERE kind = ?`, kind); err != nil {
		return err
	}
	for email, url := range byEmail {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO subscription_sources (kind, email, url) VALUES (?, ?, ?)`,
			kind, email, url,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) ListSubscriptionSources(ctx context.Context, kind string) (map[string]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT email, url FROM subscription_sources WHERE kind = ?`,
		kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]string{}
	for rows.Next() {
		var email, url string
		if err := rows.Scan(&email, &url); err != nil {
			return nil, err
		}
		result[email] = url
	}
	return result, rows.Err()
}
