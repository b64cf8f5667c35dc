// Copyright 2024-2026 Aiku AI

package relay

import "time"

// MediaKind classifies a media attachment. The kind is tagged once when a
// provider converts a platform message, so downstream decisions never have
// to probe the attachment again.
type MediaKind int

const (
	MediaDocument MediaKind = iota
	MediaPhoto
	MediaVideo
	MediaAudio
	MediaVoice
	MediaVideoNote
	MediaSticker
	MediaAnimation
	MediaOther
)

// String returns a short lowercase name for logging.
func (k MediaKind) String() string {
	switch k {
	case MediaDocument:
		return "document"
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaVoice:
		return "voice"
	case MediaVideoNote:
		return "video_note"
	case MediaSticker:
		return "sticker"
	case MediaAnimation:
		return "animation"
	default:
		return "other"
	}
}

// Media is a single attachment reference. FileID is the provider's opaque
// handle for re-sending the attachment without downloading it.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Message is an immutable snapshot of a source message. ID is unique within
// its conversation. ReplyToID is the ID of the message this one replies to
// in the same conversation, or 0 when it is not a reply.
type Message struct {
	ID        int
	ChatID    int64
	Time      time.Time
	Text      string
	ReplyToID int
	Media     []Media
}

// IsEmpty reports whether the message carries neither text nor media.
// Empty messages are never relayed.
func (m *Message) IsEmpty() bool {
	return m.Text == "" && len(m.Media) == 0
}

// HasMedia reports whether the message carries at least one attachment.
func (m *Message) HasMedia() bool {
	return len(m.Media) > 0
}

// Conversation describes a chat the account can see.
type Conversation struct {
	ID        int64
	Name      string
	IsChannel bool
	IsGroup   bool
}
