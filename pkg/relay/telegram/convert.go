// Copyright 2024-2026 Aiku AI

package telegram

import (
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aiku/telegram-relay/pkg/relay"
)

// convertMessage maps a Bot API message to the relay model. Captioned media
// contributes its caption as the message text.
func convertMessage(m *telego.Message) relay.Message {
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	msg := relay.Message{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		Time:   time.Unix(m.Date, 0),
		Text:   text,
		Media:  convertMedia(m),
	}
	if m.ReplyToMessage != nil {
		msg.ReplyToID = m.ReplyToMessage.MessageID
	}
	return msg
}

func convertMedia(m *telego.Message) []relay.Media {
	var media []relay.Media
	add := func(kind relay.MediaKind, fileID string) {
		media = append(media, relay.Media{Kind: kind, FileID: fileID})
	}
	if m.Document != nil {
		add(relay.MediaDocument, m.Document.FileID)
	}
	if photo := largestPhoto(m.Photo); photo != nil {
		add(relay.MediaPhoto, photo.FileID)
	}
	if m.Video != nil {
		add(relay.MediaVideo, m.Video.FileID)
	}
	if m.Audio != nil {
		add(relay.MediaAudio, m.Audio.FileID)
	}
	if m.Voice != nil {
		add(relay.MediaVoice, m.Voice.FileID)
	}
	if m.VideoNote != nil {
		add(relay.MediaVideoNote, m.VideoNote.FileID)
	}
	if m.Sticker != nil {
		add(relay.MediaSticker, m.Sticker.FileID)
	}
	if m.Animation != nil {
		add(relay.MediaAnimation, m.Animation.FileID)
	}
	return media
}

// largestPhoto picks the biggest size variant of a photo. The Bot API sends
// every variant and only the largest is worth reposting.
func largestPhoto(sizes []telego.PhotoSize) *telego.PhotoSize {
	var best *telego.PhotoSize
	for i := range sizes {
		if best == nil || sizes[i].Width*sizes[i].Height > best.Width*best.Height {
			best = &sizes[i]
		}
	}
	return best
}

func convertChat(chat telego.Chat) relay.Conversation {
	return relay.Conversation{
		ID:        chat.ID,
		Name:      chatName(chat.Title, chat.Username, chat.FirstName, chat.LastName),
		IsChannel: chat.Type == telego.ChatTypeChannel,
		IsGroup:   chat.Type == telego.ChatTypeGroup || chat.Type == telego.ChatTypeSupergroup,
	}
}

func convertChatInfo(info *telego.ChatFullInfo) relay.Conversation {
	return relay.Conversation{
		ID:        info.ID,
		Name:      chatName(info.Title, info.Username, info.FirstName, info.LastName),
		IsChannel: info.Type == telego.ChatTypeChannel,
		IsGroup:   info.Type == telego.ChatTypeGroup || info.Type == telego.ChatTypeSupergroup,
	}
}

// chatName picks a display name the way the Bot API populates chats: titled
// for groups and channels, named for private chats.
func chatName(title, username, firstName, lastName string) string {
	if title != "" {
		return title
	}
	if name := strings.TrimSpace(firstName + " " + lastName); name != "" {
		return name
	}
	return username
}
