package discord

import (
	"encoding/json"

	"dreary/internal/atproto"
)

// Collection NSIDs.
const (
	CollectionGuild      = "dev.dreary.discord.guild"
	CollectionChannel    = "dev.dreary.discord.channel"
	CollectionAuthor     = "dev.dreary.discord.author"
	CollectionMessage    = "dev.dreary.discord.message"
	CollectionSticker    = "dev.dreary.discord.sticker"
	CollectionEmbed      = "dev.dreary.discord.embed"
	CollectionAttachment = "dev.dreary.discord.attachment"
)

type guildRecord struct {
	Type string        `json:"$type"`
	Name string        `json:"name"`
	Icon *atproto.Blob `json:"icon"`
}

type channelRecord struct {
	Type        string `json:"$type"`
	Guild       string `json:"guild"`
	Name        string `json:"name"`
	ChannelType string `json:"type"`
	CategoryID  string `json:"categoryId,omitempty"`
	Category    string `json:"category,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

type authorRecord struct {
	Type          string          `json:"$type"`
	Name          string          `json:"name"`
	Discriminator string          `json:"discriminator,omitempty"`
	Nickname      string          `json:"nickname,omitempty"`
	Color         string          `json:"color,omitempty"`
	IsBot         bool            `json:"isBot"`
	Roles         json.RawMessage `json:"roles,omitempty"`
	Avatar        *atproto.Blob   `json:"avatar"`
}

type stickerRecord struct {
	Type   string `json:"$type"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Source string `json:"source"`
}

type embedRecord struct {
	Type        string       `json:"$type"`
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       string       `json:"color,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Images      []EmbedImage `json:"images,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type attachmentRecord struct {
	Type          string        `json:"$type"`
	FileName      string        `json:"fileName"`
	FileSizeBytes int64         `json:"fileSizeBytes"`
	File          *atproto.Blob `json:"file"`
}

type reactionEmoji struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
	IsAnimated bool   `json:"isAnimated"`
}

type reactionValue struct {
	Emoji reactionEmoji `json:"emoji"`
	Count int           `json:"count"`
}

type referenceValue struct {
	Message string `json:"message,omitempty"`
	Channel string `json:"channel,omitempty"`
	Guild   string `json:"guild"`
}

type messageRecord struct {
	Type               string          `json:"$type"`
	MessageType        string          `json:"type"`
	Timestamp          string          `json:"timestamp"`
	TimestampEdited    string          `json:"timestampEdited,omitempty"`
	CallEndedTimestamp string          `json:"callEndedTimestamp,omitempty"`
	IsPinned           bool            `json:"isPinned"`
	Content            string          `json:"content"`
	Author             string          `json:"author"`
	Guild              string          `json:"guild"`
	Channel            string          `json:"channel"`
	Reference          *referenceValue `json:"reference,omitempty"`
	Mentions           []string        `json:"mentions,omitempty"`
	Stickers           []string        `json:"stickers,omitempty"`
	Embeds             []string        `json:"embeds,omitempty"`
	Attachments        []string        `json:"attachments,omitempty"`
	Reactions          []reactionValue `json:"reactions,omitempty"`
}
