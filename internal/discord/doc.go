// Package discord imports DiscordChatExporter JSON exports into
// dev.dreary.discord.* records.
//
// Guilds and channels keep their Discord IDs as record keys, as do authors,
// messages, stickers, and attachments, so re-running an import over an
// overlapping export only writes what is missing. Embeds have no ID and are
// keyed by a hash of their content.
package discord
