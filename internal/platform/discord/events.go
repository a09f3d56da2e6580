package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

// roleChangeEvent converts a member update. When the member was not cached
// before the update, Before is empty and every held role counts as added.
func roleChangeEvent(u *discordgo.GuildMemberUpdate) (trigger.Event, bool) {
	if u == nil || u.Member == nil || u.User == nil {
		return trigger.Event{}, false
	}
	community, err := parseSnowflake(u.GuildID)
	if err != nil {
		return trigger.Event{}, false
	}
	subject, err := parseSnowflake(u.User.ID)
	if err != nil {
		return trigger.Event{}, false
	}

	var before []uint64
	if u.BeforeUpdate != nil {
		before = parseRoles(u.BeforeUpdate.Roles)
	}
	return trigger.NewRoleChange(trigger.RoleChange{
		Community: community,
		Subject:   subject,
		Bot:       u.User.Bot,
		Before:    before,
		After:     parseRoles(u.Roles),
	}), true
}

func memberLeaveEvent(r *discordgo.GuildMemberRemove) (trigger.Event, bool) {
	if r == nil || r.Member == nil || r.User == nil {
		return trigger.Event{}, false
	}
	community, err := parseSnowflake(r.GuildID)
	if err != nil {
		return trigger.Event{}, false
	}
	subject, err := parseSnowflake(r.User.ID)
	if err != nil {
		return trigger.Event{}, false
	}
	return trigger.NewMemberLeave(trigger.MemberLeave{Community: community, Subject: subject}), true
}
