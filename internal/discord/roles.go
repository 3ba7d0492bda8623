package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"vanguard-platform/internal/apperr"
)

// RoleManager grants and revokes the VIP role in the community guild.
type RoleManager interface {
	GrantVIP(ctx context.Context, discordID string) error
	RevokeVIP(ctx context.Context, discordID string) error
}

type roleAPI interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// BotRoles changes roles with the bot token.
type BotRoles struct {
	api     roleAPI
	guildID string
	roleID  string
}

func NewBotRoles(botToken, guildID, roleID string) (*BotRoles, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	return &BotRoles{api: s, guildID: guildID, roleID: roleID}, nil
}

func (b *BotRoles) GrantVIP(ctx context.Context, discordID string) error {
	if b.roleID == "" {
		return ErrRoleNotConfigured
	}
	if err := b.api.GuildMemberRoleAdd(b.guildID, discordID, b.roleID, discordgo.WithContext(ctx)); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "discord role grant failed")
	}
	return nil
}

func (b *BotRoles) RevokeVIP(ctx context.Context, discordID string) error {
	if b.roleID == "" {
		return ErrRoleNotConfigured
	}
	if err := b.api.GuildMemberRoleRemove(b.guildID, discordID, b.roleID, discordgo.WithContext(ctx)); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "discord role revoke failed")
	}
	return nil
}
