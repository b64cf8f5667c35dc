// Copyright 2024-2026 Aiku AI

package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"github.com/rs/zerolog"

	"github.com/aiku/telegram-relay/pkg/relay"
)

// archiveLimit caps the per-chat message archive. Old entries are dropped
// once a chat exceeds it.
const archiveLimit = 500

// drainBatch is the page size used when draining the pending update backlog.
const drainBatch = 100

// longPollTimeout is the getUpdates long poll timeout in seconds.
const longPollTimeout = 30

// Client is a Bot API backed relay provider and event source.
type Client struct {
	bot *telego.Bot
	log zerolog.Logger

	mu      sync.Mutex
	archive map[int64][]relay.Message
	chats   map[int64]relay.Conversation
	offset  int

	stop     chan struct{}
	stopOnce sync.Once
}

var (
	_ relay.Provider    = (*Client)(nil)
	_ relay.EventSource = (*Client)(nil)
)

// NewClient builds a client for the given bot token. Extra bot options are
// passed through to telego, which tests use to point at a fake API server.
func NewClient(token string, log zerolog.Logger, opts ...telego.BotOption) (*Client, error) {
	botOpts := append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)
	bot, err := telego.NewBot(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot client: %w", err)
	}
	return &Client{
		bot:     bot,
		log:     log.With().Str("component", "telegram").Logger(),
		archive: make(map[int64][]relay.Message),
		chats:   make(map[int64]relay.Conversation),
		stop:    make(chan struct{}),
	}, nil
}

// Connect verifies the token and drains the pending update backlog into the
// archive, so history accumulated while the relay was down is available to
// backfill before live polling starts.
func (c *Client) Connect(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot: %w", mapError(err))
	}
	c.log.Info().Str("username", me.Username).Msg("Connected to Telegram")

	drained := 0
	for {
		updates, err := c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
			Offset: c.offset,
			Limit:  drainBatch,
		})
		if err != nil {
			return fmt.Errorf("failed to drain pending updates: %w", mapError(err))
		}
		if len(updates) == 0 {
			break
		}
		for i := range updates {
			c.ingestUpdate(updates[i])
			drained++
		}
	}
	if drained > 0 {
		c.log.Info().Int("count", drained).Msg("Drained pending updates into archive")
	}
	return nil
}

// Close stops the live update pump. Safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Events starts long polling and returns the live message stream. The
// channel closes when the context is cancelled or the client is closed.
func (c *Client) Events(ctx context.Context) (<-chan relay.Message, error) {
	pollCtx, cancel := context.WithCancel(ctx)
	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Offset:  c.offset,
		Timeout: longPollTimeout,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start long polling: %w", mapError(err))
	}

	events := make(chan relay.Message)
	go func() {
		defer cancel()
		defer close(events)
		for {
			select {
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := c.ingestUpdate(update)
				if !ok {
					continue
				}
				select {
				case events <- msg:
				case <-c.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// ingestUpdate records an update's message into the archive and the chat
// registry. Returns the converted message when the update carried one.
func (c *Client) ingestUpdate(update telego.Update) (relay.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if update.UpdateID >= c.offset {
		c.offset = update.UpdateID + 1
	}

	raw := update.Message
	if raw == nil {
		raw = update.ChannelPost
	}
	if raw == nil {
		return relay.Message{}, false
	}

	msg := convertMessage(raw)
	c.chats[raw.Chat.ID] = convertChat(raw.Chat)
	c.archiveLocked(msg)
	return msg, true
}

// archiveLocked appends a message to its chat's archive. Caller holds c.mu.
func (c *Client) archiveLocked(msg relay.Message) {
	entries := append(c.archive[msg.ChatID], msg)
	if len(entries) > archiveLimit {
		entries = entries[len(entries)-archiveLimit:]
	}
	c.archive[msg.ChatID] = entries
}

// ListConversations returns every chat the bot has observed, ordered by id.
func (c *Client) ListConversations(ctx context.Context) ([]relay.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	convs := make([]relay.Conversation, 0, len(c.chats))
	for _, conv := range c.chats {
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].ID < convs[j].ID })
	return convs, nil
}

// FetchMessages serves a chat's archived history. When a limit applies, the
// newest qualifying messages win.
func (c *Client) FetchMessages(ctx context.Context, chatID int64, opts relay.FetchOptions) ([]relay.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []relay.Message
	for _, msg := range c.archive[chatID] {
		if !opts.Since.IsZero() && msg.Time.Before(opts.Since) {
			continue
		}
		out = append(out, msg)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

// RecentMessages returns up to limit archived messages, newest first. The
// client's own sends are archived too, so the target chat's latest relayed
// message is always visible here.
func (c *Client) RecentMessages(ctx context.Context, chatID int64, limit int) ([]relay.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.archive[chatID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]relay.Message, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// ResolveConversation resolves a numeric chat id or public @handle through
// the Bot API and registers the result in the chat registry.
func (c *Client) ResolveConversation(ctx context.Context, ref string) (relay.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return relay.Conversation{}, fmt.Errorf("%w: empty conversation reference", relay.ErrNotFound)
	}

	var cid telego.ChatID
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		cid = telego.ChatID{ID: id}
	} else {
		if !strings.HasPrefix(ref, "@") {
			ref = "@" + ref
		}
		cid = telego.ChatID{Username: ref}
	}

	info, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: cid})
	if err != nil {
		return relay.Conversation{}, fmt.Errorf("failed to resolve %q: %w", ref, mapError(err))
	}
	conv := convertChatInfo(info)

	c.mu.Lock()
	c.chats[conv.ID] = conv
	c.mu.Unlock()
	return conv, nil
}

// SendText sends a plain text message, optionally as a reply.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	msg, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: chatID},
		Text:            text,
		ReplyParameters: replyParams(replyTo),
	})
	if err != nil {
		return 0, mapError(err)
	}
	c.recordSent(msg, text)
	return msg.MessageID, nil
}

// SendMedia reposts a media attachment by file id, optionally captioned.
// Video notes and stickers cannot carry captions in the Bot API, so theirs
// are dropped.
func (c *Client) SendMedia(ctx context.Context, chatID int64, media relay.Media, caption string, replyTo int) (int, error) {
	cid := telego.ChatID{ID: chatID}
	file := telego.InputFile{FileID: media.FileID}
	reply := replyParams(replyTo)

	var (
		msg *telego.Message
		err error
	)
	switch media.Kind {
	case relay.MediaPhoto:
		msg, err = c.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID: cid, Photo: file, Caption: caption, ReplyParameters: reply,
		})
	case relay.MediaVideo:
		msg, err = c.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID: cid, Video: file, Caption: caption, ReplyParameters: reply,
		})
	case relay.MediaAudio:
		msg, err = c.bot.SendAudio(ctx, &telego.SendAudioParams{
			ChatID: cid, Audio: file, Caption: caption, ReplyParameters: reply,
		})
	case relay.MediaVoice:
		msg, err = c.bot.SendVoice(ctx, &telego.SendVoiceParams{
			ChatID: cid, Voice: file, Caption: caption, ReplyParameters: reply,
		})
	case relay.MediaVideoNote:
		msg, err = c.bot.SendVideoNote(ctx, &telego.SendVideoNoteParams{
			ChatID: cid, VideoNote: file, ReplyParameters: reply,
		})
	case relay.MediaSticker:
		msg, err = c.bot.SendSticker(ctx, &telego.SendStickerParams{
			ChatID: cid, Sticker: file, ReplyParameters: reply,
		})
	case relay.MediaAnimation:
		msg, err = c.bot.SendAnimation(ctx, &telego.SendAnimationParams{
			ChatID: cid, Animation: file, Caption: caption, ReplyParameters: reply,
		})
	default:
		// Documents and anything unclassified repost as documents.
		msg, err = c.bot.SendDocument(ctx, &telego.SendDocumentParams{
			ChatID: cid, Document: file, Caption: caption, ReplyParameters: reply,
		})
	}
	if err != nil {
		return 0, mapError(err)
	}
	c.recordSent(msg, caption)
	return msg.MessageID, nil
}

// recordSent archives one of the client's own sends so recency lookups on
// the target chat see it.
func (c *Client) recordSent(msg *telego.Message, text string) {
	if msg == nil {
		return
	}
	rec := convertMessage(msg)
	if rec.Text == "" {
		rec.Text = text
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	c.mu.Lock()
	c.archiveLocked(rec)
	c.mu.Unlock()
}

func replyParams(replyTo int) *telego.ReplyParameters {
	if replyTo == 0 {
		return nil
	}
	return &telego.ReplyParameters{MessageID: replyTo}
}

// mapError translates Bot API errors into the provider's sentinel errors.
func mapError(err error) error {
	var apiErr *telegoapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode {
	case 403:
		return fmt.Errorf("%w: %s", relay.ErrNoAccess, apiErr.Description)
	case 400, 404:
		if strings.Contains(strings.ToLower(apiErr.Description), "not found") {
			return fmt.Errorf("%w: %s", relay.ErrNotFound, apiErr.Description)
		}
	}
	return err
}
