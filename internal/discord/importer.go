package discord

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"dreary/internal/atproto"
	"dreary/internal/blobsource"
	"dreary/internal/ledger"
	"dreary/internal/logging"
	"dreary/internal/services"
)

// Repository is the subset of the XRPC client the importer needs.
type Repository interface {
	DID() string
	FindRecord(ctx context.Context, repo, collection, rkey string) (*atproto.Record, error)
	CreateRecord(ctx context.Context, collection, rkey string, record any) (string, error)
	IndexByRKey(ctx context.Context, repo, collection string) (map[string]string, error)
}

// Stats summarizes an import.
type Stats struct {
	Created int
	Skipped int
}

// Options configures an Importer.
type Options struct {
	// ScratchDir holds downloaded attachments. Empty uses the export directory.
	ScratchDir string
	Logger     *slog.Logger
	Scratch    []blobsource.Option
}

// Importer writes one export into a repository.
type Importer struct {
	repo     Repository
	uploader *ledger.Uploader
	opts     Options
	logger   *slog.Logger

	did     string
	scratch *blobsource.Scratch
	indexes map[string]map[string]string
}

// NewImporter creates an importer writing through repo and uploader.
func NewImporter(repo Repository, uploader *ledger.Uploader, opts Options) *Importer {
	return &Importer{
		repo:     repo,
		uploader: uploader,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "discord"),
	}
}

// Import reads the export at path and writes guild, channel, and any messages
// not already stored.
func (im *Importer) Import(ctx context.Context, path string) (Stats, error) {
	var stats Stats
	export, err := LoadExport(path)
	if err != nil {
		return stats, services.Wrap(services.ErrValidation, "discord", "load export", "Input a valid DiscordChatExporter JSON file", err)
	}

	im.did = im.repo.DID()
	scratchOpts := append([]blobsource.Option{blobsource.WithLogger(im.logger)}, im.opts.Scratch...)
	scratch, err := blobsource.NewScratch(filepath.Dir(path), im.opts.ScratchDir, scratchOpts...)
	if err != nil {
		return stats, err
	}
	im.scratch = scratch
	defer func() {
		if cerr := scratch.Close(); cerr != nil {
			logging.WarnWithContext(im.logger, "scratch cleanup failed", "scratch_cleanup_failed",
				logging.Error(cerr),
				logging.String(logging.FieldImpact, "downloaded attachments left on disk"),
				logging.String(logging.FieldErrorHint, "remove "+scratch.Dir()+" manually"))
		}
	}()

	guildURI, err := im.findOrCreateGuild(ctx, export.Guild)
	if err != nil {
		return stats, err
	}
	channelURI, err := im.findOrCreateChannel(ctx, export.Channel, guildURI)
	if err != nil {
		return stats, err
	}
	if err := im.loadIndexes(ctx); err != nil {
		return stats, err
	}

	for _, msg := range export.Messages {
		if _, ok := im.indexes[CollectionMessage][msg.ID]; ok {
			im.logger.Debug("skipping existing message", logging.String(logging.FieldRKey, msg.ID))
			stats.Skipped++
			continue
		}
		uri, err := im.createMessage(ctx, msg, guildURI, channelURI)
		if err != nil {
			return stats, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		im.indexes[CollectionMessage][msg.ID] = uri
		stats.Created++
	}

	im.logger.Info("discord import complete",
		logging.String("guild", export.Guild.Name),
		logging.String("channel", export.Channel.Name),
		logging.Int("created", stats.Created),
		logging.Int("skipped", stats.Skipped))
	return stats, nil
}

func (im *Importer) findOrCreateGuild(ctx context.Context, guild Guild) (string, error) {
	existing, err := im.repo.FindRecord(ctx, im.did, CollectionGuild, guild.ID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		im.logger.Info("found existing guild record", logging.String(logging.FieldURI, existing.URI))
		return existing.URI, nil
	}
	if guild.IconURL == "" {
		return "", services.Wrap(services.ErrValidation, "discord", "guild", "Missing necessary guild field: iconUrl", nil)
	}
	icon, err := im.uploadImage(ctx, guild.IconURL)
	if err != nil {
		return "", fmt.Errorf("guild icon: %w", err)
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionGuild, guild.ID, guildRecord{
		Type: CollectionGuild,
		Name: guild.Name,
		Icon: icon,
	})
	if err != nil {
		return "", err
	}
	im.logger.Info("created guild record", logging.String(logging.FieldURI, uri))
	return uri, nil
}

func (im *Importer) findOrCreateChannel(ctx context.Context, channel Channel, guildURI string) (string, error) {
	existing, err := im.repo.FindRecord(ctx, im.did, CollectionChannel, channel.ID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		im.logger.Info("found existing channel record", logging.String(logging.FieldURI, existing.URI))
		return existing.URI, nil
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionChannel, channel.ID, channelRecord{
		Type:        CollectionChannel,
		Guild:       guildURI,
		Name:        channel.Name,
		ChannelType: channel.Type,
		CategoryID:  channel.CategoryID,
		Category:    channel.Category,
		Topic:       channel.Topic,
	})
	if err != nil {
		return "", err
	}
	im.logger.Info("created channel record", logging.String(logging.FieldURI, uri))
	return uri, nil
}

func (im *Importer) loadIndexes(ctx context.Context) error {
	im.indexes = make(map[string]map[string]string)
	for _, collection := range []string{CollectionAuthor, CollectionMessage, CollectionSticker, CollectionEmbed, CollectionAttachment} {
		index, err := im.repo.IndexByRKey(ctx, im.did, collection)
		if err != nil {
			return err
		}
		im.indexes[collection] = index
		im.logger.Debug("index loaded",
			logging.String(logging.FieldCollection, collection),
			logging.Int(logging.FieldCount, len(index)))
	}
	return nil
}

func (im *Importer) createMessage(ctx context.Context, msg Message, guildURI, channelURI string) (string, error) {
	authorURI, err := im.findOrCreateAuthor(ctx, msg.Author)
	if err != nil {
		return "", err
	}
	timestamp, err := atproto.ConvertTimestampUTC(msg.Timestamp)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "discord", "message", "invalid timestamp", err)
	}
	record := messageRecord{
		Type:               CollectionMessage,
		MessageType:        msg.Type,
		Timestamp:          timestamp,
		TimestampEdited:    convertOptional(msg.TimestampEdited),
		CallEndedTimestamp: convertOptional(msg.CallEndedTimestamp),
		IsPinned:           msg.IsPinned,
		Content:            msg.Content,
		Author:             authorURI,
		Guild:              guildURI,
		Channel:            channelURI,
	}

	if ref := msg.Reference; ref != nil {
		guildID := ref.GuildID
		if guildID == "" {
			guildID = "0"
		}
		record.Reference = &referenceValue{Guild: atproto.ComposeURI(im.did, CollectionGuild, guildID)}
		if ref.MessageID != "" {
			record.Reference.Message = atproto.ComposeURI(im.did, CollectionMessage, ref.MessageID)
		}
		if ref.ChannelID != "" {
			record.Reference.Channel = atproto.ComposeURI(im.did, CollectionChannel, ref.ChannelID)
		}
	}

	for _, mention := range msg.Mentions {
		uri, err := im.findOrCreateAuthor(ctx, mention)
		if err != nil {
			return "", fmt.Errorf("mention: %w", err)
		}
		record.Mentions = append(record.Mentions, uri)
	}
	for _, sticker := range msg.Stickers {
		uri, err := im.findOrCreateSticker(ctx, sticker)
		if err != nil {
			return "", fmt.Errorf("sticker: %w", err)
		}
		record.Stickers = append(record.Stickers, uri)
	}
	for _, embed := range msg.Embeds {
		uri, err := im.findOrCreateEmbed(ctx, embed)
		if err != nil {
			return "", fmt.Errorf("embed: %w", err)
		}
		record.Embeds = append(record.Embeds, uri)
	}
	for _, attachment := range msg.Attachments {
		uri, err := im.findOrCreateAttachment(ctx, attachment)
		if err != nil {
			return "", fmt.Errorf("attachment: %w", err)
		}
		record.Attachments = append(record.Attachments, uri)
	}
	for _, reaction := range msg.Reactions {
		record.Reactions = append(record.Reactions, reactionValue{
			Emoji: reactionEmoji{
				ID:         reaction.Emoji.ID,
				Name:       reaction.Emoji.Name,
				Code:       reaction.Emoji.Code,
				IsAnimated: reaction.Emoji.IsAnimated,
			},
			Count: reaction.Count,
		})
	}

	return im.repo.CreateRecord(ctx, CollectionMessage, msg.ID, record)
}

func (im *Importer) findOrCreateAuthor(ctx context.Context, author Author) (string, error) {
	if uri, ok := im.indexes[CollectionAuthor][author.ID]; ok {
		return uri, nil
	}
	if author.AvatarURL == "" {
		return "", services.Wrap(services.ErrValidation, "discord", "author", "Missing necessary author field: avatarUrl", nil)
	}
	avatar, err := im.uploadImage(ctx, author.AvatarURL)
	if err != nil {
		return "", fmt.Errorf("author %s avatar: %w", author.ID, err)
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionAuthor, author.ID, authorRecord{
		Type:          CollectionAuthor,
		Name:          author.Name,
		Discriminator: author.Discriminator,
		Nickname:      author.Nickname,
		Color:         author.Color,
		IsBot:         author.IsBot,
		Roles:         nonNullRaw(author.Roles),
		Avatar:        avatar,
	})
	if err != nil {
		return "", err
	}
	im.indexes[CollectionAuthor][author.ID] = uri
	return uri, nil
}

func (im *Importer) findOrCreateSticker(ctx context.Context, sticker Sticker) (string, error) {
	if uri, ok := im.indexes[CollectionSticker][sticker.ID]; ok {
		return uri, nil
	}
	if sticker.SourceURL == "" {
		return "", services.Wrap(services.ErrValidation, "discord", "sticker", "Missing necessary sticker field: sourceUrl", nil)
	}
	source, err := im.scratch.ReadText(ctx, sticker.SourceURL)
	if err != nil {
		return "", err
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionSticker, sticker.ID, stickerRecord{
		Type:   CollectionSticker,
		Name:   sticker.Name,
		Format: sticker.Format,
		Source: source,
	})
	if err != nil {
		return "", err
	}
	im.indexes[CollectionSticker][sticker.ID] = uri
	return uri, nil
}

func (im *Importer) findOrCreateEmbed(ctx context.Context, embed Embed) (string, error) {
	record := embedRecord{
		Type:        CollectionEmbed,
		Title:       embed.Title,
		URL:         embed.URL,
		Timestamp:   convertOptional(embed.Timestamp),
		Description: embed.Description,
		Color:       embed.Color,
		Author:      embed.Author,
		Thumbnail:   embed.Thumbnail,
		Images:      embed.Images,
		Fields:      embed.Fields,
	}
	rkey, err := EmbedKey(record)
	if err != nil {
		return "", err
	}
	if uri, ok := im.indexes[CollectionEmbed][rkey]; ok {
		return uri, nil
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionEmbed, rkey, record)
	if err != nil {
		return "", err
	}
	im.indexes[CollectionEmbed][rkey] = uri
	return uri, nil
}

func (im *Importer) findOrCreateAttachment(ctx context.Context, attachment Attachment) (string, error) {
	if uri, ok := im.indexes[CollectionAttachment][attachment.ID]; ok {
		return uri, nil
	}
	data, err := im.scratch.ReadBytes(ctx, attachment.URL)
	if err != nil {
		return "", err
	}
	blob, err := im.uploader.Upload(ctx, data, "")
	if err != nil {
		return "", err
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionAttachment, attachment.ID, attachmentRecord{
		Type:          CollectionAttachment,
		FileName:      attachment.FileName,
		FileSizeBytes: attachment.FileSizeBytes,
		File:          blob,
	})
	if err != nil {
		return "", err
	}
	im.indexes[CollectionAttachment][attachment.ID] = uri
	return uri, nil
}

// uploadImage fetches ref and uploads it, rejecting non-image content.
func (im *Importer) uploadImage(ctx context.Context, ref string) (*atproto.Blob, error) {
	data, err := im.scratch.ReadBytes(ctx, ref)
	if err != nil {
		return nil, err
	}
	mimeType := atproto.DetectMIME(data)
	blob := &atproto.Blob{MimeType: mimeType}
	if !blob.IsImage() {
		return nil, services.Wrap(services.ErrValidation, "discord", "blob", fmt.Sprintf("Unsupported blob type '%s'", mimeType), nil)
	}
	return im.uploader.Upload(ctx, data, mimeType)
}

// EmbedKey derives a stable record key from embed content.
func EmbedKey(record any) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode embed: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}

func convertOptional(raw string) string {
	if raw == "" {
		return ""
	}
	converted, err := atproto.ConvertTimestampUTC(raw)
	if err != nil {
		return raw
	}
	return converted
}

func nonNullRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
