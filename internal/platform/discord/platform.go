// Package discord connects the reconciler to Discord through discordgo.
//
// Platform implements reconcile.Directory, reconcile.Mutator and
// reconcile.Oracle over the REST API, and runtime.EventSource over the
// gateway. Snowflakes cross the boundary as strings and are parsed here.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

const (
	// DefaultRequestTimeout bounds a single REST call.
	DefaultRequestTimeout = 20 * time.Second

	// memberPageSize is the largest page the member list endpoint returns.
	memberPageSize = 1000
)

// ErrNotConnected is returned when the gateway has not delivered the ready
// payload yet, so the bot's own identity and guild list are unknown.
var ErrNotConnected = errors.New("discord session not ready")

// Config configures a Platform.
type Config struct {
	Token          string
	RequestTimeout time.Duration
}

// Platform is a discordgo-backed platform client.
type Platform struct {
	session *discordgo.Session

	mu       sync.Mutex
	removers []func()
	open     bool
}

// New creates a Platform. The gateway is not opened until Start.
func New(cfg Config) (*Platform, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: bot token is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	s.Client = &http.Client{Timeout: cfg.RequestTimeout}
	s.State.TrackMembers = true
	s.State.TrackRoles = true

	return &Platform{session: s}, nil
}

// Communities lists the guilds the bot is in, as seen by the gateway.
func (p *Platform) Communities(context.Context) ([]uint64, error) {
	st := p.session.State
	st.RLock()
	defer st.RUnlock()
	if st.User == nil {
		return nil, ErrNotConnected
	}

	out := make([]uint64, 0, len(st.Guilds))
	for _, g := range st.Guilds {
		id, err := parseSnowflake(g.ID)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// MemberRoles fetches one member's roles. The @everyone role is appended so
// the result matches what the platform considers held.
func (p *Platform) MemberRoles(ctx context.Context, community, subject uint64) ([]uint64, error) {
	m, err := p.session.GuildMember(formatSnowflake(community), formatSnowflake(subject), discordgo.WithContext(ctx))
	if err != nil {
		if isRESTCode(err, discordgo.ErrCodeUnknownMember) || isRESTCode(err, discordgo.ErrCodeUnknownUser) {
			return nil, reconcile.ErrNotMember
		}
		return nil, fmt.Errorf("get member %d in %d: %w", subject, community, err)
	}
	return append(parseRoles(m.Roles), community), nil
}

// Members pages through every member of a community.
func (p *Platform) Members(ctx context.Context, community uint64) ([]reconcile.Member, error) {
	guild := formatSnowflake(community)
	var (
		out   []reconcile.Member
		after string
	)
	for {
		page, err := p.session.GuildMembers(guild, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members of %d: %w", community, err)
		}
		for _, m := range page {
			if rm, ok := convertMember(m, community); ok {
				out = append(out, rm)
			}
		}
		if len(page) < memberPageSize {
			break
		}
		after = page[len(page)-1].User.ID
	}
	slices.SortFunc(out, func(a, b reconcile.Member) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (p *Platform) AddRoles(ctx context.Context, community, subject uint64, roles []uint64) error {
	return p.mutate(ctx, community, subject, roles, p.session.GuildMemberRoleAdd)
}

func (p *Platform) RemoveRoles(ctx context.Context, community, subject uint64, roles []uint64) error {
	return p.mutate(ctx, community, subject, roles, p.session.GuildMemberRoleRemove)
}

type roleCall func(guildID, userID, roleID string, options ...discordgo.RequestOption) error

// mutate applies roles one call at a time. Discord has no bulk role
// endpoint short of replacing the whole role list, which would race with
// concurrent edits.
func (p *Platform) mutate(ctx context.Context, community, subject uint64, roles []uint64, call roleCall) error {
	guild, user := formatSnowflake(community), formatSnowflake(subject)

	var (
		failed  []uint64
		lastErr error
	)
	for _, role := range roles {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := call(guild, user, formatSnowflake(role), discordgo.WithContext(ctx))
		if err == nil {
			continue
		}
		if isRESTCode(err, discordgo.ErrCodeUnknownMember) {
			return reconcile.ErrNotMember
		}
		logger.Warn("Role mutation failed",
			logger.Community(community), logger.Subject(subject), logger.Role(role), logger.Err(err))
		failed = append(failed, role)
		lastErr = classifyMutationError(err)
	}
	if len(failed) > 0 {
		return &reconcile.PartialFailure{Roles: failed, Err: lastErr}
	}
	return nil
}

// PartitionManageable splits roles by whether the bot may assign them.
func (p *Platform) PartitionManageable(ctx context.Context, community uint64, roles []uint64) (manageable, unmanageable []uint64, err error) {
	guild := formatSnowflake(community)

	self, err := p.selfID()
	if err != nil {
		return nil, nil, err
	}
	guildRoles, err := p.session.GuildRoles(guild, discordgo.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("list roles of %d: %w", community, err)
	}
	me, err := p.session.GuildMember(guild, self, discordgo.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("get bot member in %d: %w", community, err)
	}

	manageable, unmanageable = partitionRoles(community, guildRoles, me.Roles, roles)
	return manageable, unmanageable, nil
}

func (p *Platform) selfID() (string, error) {
	st := p.session.State
	st.RLock()
	defer st.RUnlock()
	if st.User == nil {
		return "", ErrNotConnected
	}
	return st.User.ID, nil
}

// partitionRoles applies the role hierarchy: the bot can only assign roles
// strictly below its own highest role. Integration-managed roles, the
// @everyone role and roles the guild does not know are never assignable.
func partitionRoles(community uint64, guildRoles []*discordgo.Role, botRoles []string, roles []uint64) (manageable, unmanageable []uint64) {
	byID := make(map[uint64]*discordgo.Role, len(guildRoles))
	for _, r := range guildRoles {
		if id, err := parseSnowflake(r.ID); err == nil {
			byID[id] = r
		}
	}

	top := -1
	for _, s := range botRoles {
		id, err := parseSnowflake(s)
		if err != nil {
			continue
		}
		if r, ok := byID[id]; ok && r.Position > top {
			top = r.Position
		}
	}

	for _, id := range roles {
		r, ok := byID[id]
		if !ok || id == community || r.Managed || r.Position >= top {
			unmanageable = append(unmanageable, id)
			continue
		}
		manageable = append(manageable, id)
	}
	return manageable, unmanageable
}

// Start registers gateway handlers and opens the connection.
func (p *Platform) Start(ctx context.Context, sink func(ctx context.Context, ev trigger.Event)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return errors.New("discord: already started")
	}

	p.removers = append(p.removers,
		p.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			logger.Info("Discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
		}),
		p.session.AddHandler(func(_ *discordgo.Session, u *discordgo.GuildMemberUpdate) {
			if ev, ok := roleChangeEvent(u); ok {
				sink(ctx, ev)
			}
		}),
		p.session.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildMemberRemove) {
			if ev, ok := memberLeaveEvent(r); ok {
				sink(ctx, ev)
			}
		}),
	)

	if err := p.session.Open(); err != nil {
		p.dropHandlers()
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	p.open = true
	return nil
}

// Close removes the handlers and closes the gateway connection.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropHandlers()
	if !p.open {
		return nil
	}
	p.open = false
	return p.session.Close()
}

func (p *Platform) dropHandlers() {
	for _, remove := range p.removers {
		remove()
	}
	p.removers = nil
}

func isRESTCode(err error, code int) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return false
	}
	return rest.Message.Code == code
}

func classifyMutationError(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", reconcile.ErrRoleMutationForbidden, err)
		}
		if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeMissingPermissions {
			return fmt.Errorf("%w: %v", reconcile.ErrRoleMutationForbidden, err)
		}
	}
	return err
}

func parseSnowflake(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func formatSnowflake(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// parseRoles converts role ids, skipping any that are malformed.
func parseRoles(ids []string) []uint64 {
	out := make([]uint64, 0, len(ids)+1)
	for _, s := range ids {
		if id, err := parseSnowflake(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func convertMember(m *discordgo.Member, community uint64) (reconcile.Member, bool) {
	if m == nil || m.User == nil {
		return reconcile.Member{}, false
	}
	id, err := parseSnowflake(m.User.ID)
	if err != nil {
		return reconcile.Member{}, false
	}
	return reconcile.Member{
		ID:    id,
		Bot:   m.User.Bot,
		Roles: append(parseRoles(m.Roles), community),
	}, true
}

var (
	_ reconcile.Directory = (*Platform)(nil)
	_ reconcile.Mutator   = (*Platform)(nil)
	_ reconcile.Oracle    = (*Platform)(nil)
)
