package discord

import (
	"encoding/json"
	"fmt"
	"os"
)

// Export is the top-level DiscordChatExporter JSON document.
type Export struct {
	Guild    Guild     `json:"guild"`
	Channel  Channel   `json:"channel"`
	Messages []Message `json:"messages"`
}

// Guild is the exported server.
type Guild struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// Channel is the exported channel.
type Channel struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	CategoryID string `json:"categoryId"`
	Category   string `json:"category"`
	Name       string `json:"name"`
	Topic      string `json:"topic"`
}

// Author is a message author or mentioned user.
type Author struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Discriminator string          `json:"discriminator"`
	Nickname      string          `json:"nickname"`
	Color         string          `json:"color"`
	IsBot         bool            `json:"isBot"`
	Roles         json.RawMessage `json:"roles"`
	AvatarURL     string          `json:"avatarUrl"`
}

// Attachment is an uploaded file.
type Attachment struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
}

// Sticker is a message sticker. SourceURL points at its Lottie/JSON source.
type Sticker struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Format    string `json:"format"`
	SourceURL string `json:"sourceUrl"`
}

// Emoji is a reaction emoji.
type Emoji struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	IsAnimated bool   `json:"isAnimated"`
	ImageURL   string `json:"imageUrl"`
}

// Reaction is an emoji reaction with its count.
type Reaction struct {
	Emoji Emoji `json:"emoji"`
	Count int   `json:"count"`
}

// EmbedAuthor is the author block of an embed.
type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	IconURL string `json:"iconUrl"`
}

// EmbedField is a name/value pair inside an embed.
type EmbedField struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	IsInline bool   `json:"isInline"`
}

// EmbedImage is an embed thumbnail or image.
type EmbedImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Embed is a rich link preview.
type Embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Timestamp   string       `json:"timestamp"`
	Description string       `json:"description"`
	Color       string       `json:"color"`
	Author      *EmbedAuthor `json:"author"`
	Thumbnail   *EmbedImage  `json:"thumbnail"`
	Images      []EmbedImage `json:"images"`
	Fields      []EmbedField `json:"fields"`
}

// Reference links a reply to the message it answers.
type Reference struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
	GuildID   string `json:"guildId"`
}

// Message is one exported message.
type Message struct {
	ID                 string       `json:"id"`
	Type               string       `json:"type"`
	Timestamp          string       `json:"timestamp"`
	TimestampEdited    string       `json:"timestampEdited"`
	CallEndedTimestamp string       `json:"callEndedTimestamp"`
	IsPinned           bool         `json:"isPinned"`
	Content            string       `json:"content"`
	Author             Author       `json:"author"`
	Attachments        []Attachment `json:"attachments"`
	Embeds             []Embed      `json:"embeds"`
	Stickers           []Sticker    `json:"stickers"`
	Reactions          []Reaction   `json:"reactions"`
	Mentions           []Author     `json:"mentions"`
	Reference          *Reference   `json:"reference"`
}

// LoadExport reads and validates an export file.
func LoadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}
	if export.Guild.ID == "" || export.Channel.ID == "" {
		return nil, fmt.Errorf("parse export %s: missing guild or channel id", path)
	}
	return &export, nil
}
