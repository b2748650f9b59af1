// Package discord is a thin typed client for the subset of the chat
// platform's REST API the syncs need. It is plumbing: no business
// rules live here.
package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"clubops-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://discord.com/api/v10"

type Client struct {
	http *resty.Client
}

type ClientOptions struct {
	// BotToken authorizes every request ("Bot <token>").
	BotToken string
	// BaseURL overrides the API root, used by tests.
	BaseURL string
}

func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Authorization", "Bot "+opts.BotToken)
	client.SetTimeout(time.Second * 30)
	// the platform rate limits aggressively; retry with its own
	// advisory delay
	client.SetRetryCount(5)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		return res != nil && res.StatusCode() == http.StatusTooManyRequests
	})
	client.SetRetryAfter(func(cli *resty.Client, res *resty.Response) (time.Duration, error) {
		retryAfter, err := time.ParseDuration(res.Header().Get("Retry-After") + "s")
		if err != nil {
			return time.Second, nil
		}
		return retryAfter, nil
	})

	telemetry.InstrumentResty(client, "lib/discord")

	return &Client{http: client}
}

func apiError(res *resty.Response) error {
	return fmt.Errorf("discord: %s %s: %s: %s",
		res.Request.Method, res.Request.URL, res.Status(), res.String())
}

func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&roles).
		Get(fmt.Sprintf("/guilds/%s/roles", guildID))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return roles, nil
}

type CreateRoleParams struct {
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Mentionable bool   `json:"mentionable"`
}

func (c *Client) CreateRole(ctx context.Context, guildID string, params CreateRoleParams) (Role, error) {
	var role Role
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&role).
		Post(fmt.Sprintf("/guilds/%s/roles", guildID))
	if err != nil {
		return Role{}, err
	}
	if res.IsError() {
		return Role{}, apiError(res)
	}
	return role, nil
}

func (c *Client) DeleteRole(ctx context.Context, guildID, roleID string) error {
	res, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/guilds/%s/roles/%s", guildID, roleID))
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

// GuildMembers pages through the member list in chunks of 1000.
func (c *Client) GuildMembers(ctx context.Context, guildID string) ([]Member, error) {
	var members []Member
	after := ""
	for {
		var page []Member
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("limit", "1000").
			SetResult(&page)
		if after != "" {
			req.SetQueryParam("after", after)
		}
		res, err := req.Get(fmt.Sprintf("/guilds/%s/members", guildID))
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, apiError(res)
		}
		members = append(members, page...)
		if len(page) < 1000 {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (Member, error) {
	var member Member
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&member).
		Get(fmt.Sprintf("/guilds/%s/members/%s", guildID, userID))
	if err != nil {
		return Member{}, err
	}
	if res.IsError() {
		return Member{}, apiError(res)
	}
	return member, nil
}

// AddMemberRoles grants the given roles, one call per role. The
// member's other roles are never touched, so a role granted by hand
// between a mirror run and a reconciliation run survives.
func (c *Client) AddMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		res, err := c.http.R().
			SetContext(ctx).
			Put(fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID))
		if err != nil {
			return err
		}
		if res.IsError() {
			return apiError(res)
		}
	}
	return nil
}

// RemoveMemberRoles revokes the given roles, one call per role.
func (c *Client) RemoveMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		res, err := c.http.R().
			SetContext(ctx).
			Delete(fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID))
		if err != nil {
			return err
		}
		if res.IsError() {
			return apiError(res)
		}
	}
	return nil
}

// ChannelMessages returns messages newer than `after` (a message id,
// empty for everything), oldest first.
func (c *Client) ChannelMessages(ctx context.Context, channelID, after string) ([]Message, error) {
	var all []Message
	for {
		var page []Message
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("limit", "100").
			SetResult(&page)
		if after != "" {
			req.SetQueryParam("after", after)
		}
		res, err := req.Get(fmt.Sprintf("/channels/%s/messages", channelID))
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, apiError(res)
		}
		// the API returns newest first within a page
		for i := len(page) - 1; i >= 0; i-- {
			all = append(all, page[i])
		}
		if len(page) < 100 {
			return all, nil
		}
		after = all[len(all)-1].ID
	}
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	var msg Message
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"content": content}).
		SetResult(&msg).
		Post(fmt.Sprintf("/channels/%s/messages", channelID))
	if err != nil {
		return Message{}, err
	}
	if res.IsError() {
		return Message{}, apiError(res)
	}
	return msg, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"content": content}).
		Patch(fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID))
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

// AddReaction reacts to a message as the bot. Custom emoji go in the
// name:id form, unicode emoji as themselves.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	res, err := c.http.R().
		SetContext(ctx).
		Put(fmt.Sprintf(
			"/channels/%s/messages/%s/reactions/%s/@me",
			channelID, messageID, url.PathEscape(emoji),
		))
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&channels).
		Get(fmt.Sprintf("/guilds/%s/channels", guildID))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return channels, nil
}

type CreateChannelParams struct {
	Name     string `json:"name"`
	Topic    string `json:"topic"`
	ParentID string `json:"parent_id,omitempty"`
	Type     int    `json:"type"`
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, params CreateChannelParams) (Channel, error) {
	var channel Channel
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&channel).
		Post(fmt.Sprintf("/guilds/%s/channels", guildID))
	if err != nil {
		return Channel{}, err
	}
	if res.IsError() {
		return Channel{}, apiError(res)
	}
	return channel, nil
}

func (c *Client) EditChannel(ctx context.Context, channelID, name, topic string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": name, "topic": topic}).
		Patch(fmt.Sprintf("/channels/%s", channelID))
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	res, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/channels/%s", channelID))
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

// DownloadAvatar fetches the member's avatar image bytes from the CDN.
func (c *Client) DownloadAvatar(ctx context.Context, user User) ([]byte, error) {
	if user.Avatar == "" {
		return nil, nil
	}
	link := fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", user.ID, user.Avatar)
	res, err := c.http.R().SetContext(ctx).Get(link)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return res.Body(), nil
}
