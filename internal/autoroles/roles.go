package autoroles

import "github.com/bwmarrin/discordgo"

type discordRoleManager struct {
	session *discordgo.Session
}

// NewDiscordRoleManager adapts a discordgo session to RoleManager.
func NewDiscordRoleManager(session *discordgo.Session) RoleManager {
	return &discordRoleManager{session: session}
}

func (m *discordRoleManager) AddRole(guildID, userID, roleID string) error {
	return m.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (m *discordRoleManager) RemoveRole(guildID, userID, roleID string) error {
	return m.session.GuildMemberRoleRemove(guildID, userID, roleID)
}
