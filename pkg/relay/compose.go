// Copyright 2024-2026 Aiku AI

package relay

import (
	"fmt"
	"strings"
)

// Footer segment formats and separators. Kept fixed so relayed messages
// look uniform in the target conversation.
const (
	sourceFooterFormat = "\U0001f4e2 Source: %s"
	timeFooterFormat   = "\U0001f550 Time: %s"
	footerSeparator    = " | "
	footerTimeLayout   = "2006-01-02 15:04:05"
)

// Payload is the outgoing content for one relayed message: composed text
// (possibly empty) and at most one media reference.
type Payload struct {
	Text  string
	Media *Media
}

// mediaPriority orders attachment kinds for selection when a message
// carries more than one. Lower index wins.
var mediaPriority = []MediaKind{
	MediaDocument,
	MediaPhoto,
	MediaVideo,
	MediaAudio,
	MediaVoice,
	MediaVideoNote,
	MediaSticker,
	MediaAnimation,
	MediaOther,
}

// Compose builds the outgoing payload for a source message. The base text
// is the message text verbatim; an optional footer (origin label and/or the
// original timestamp) is appended after a blank line. The timestamp segment
// is only included when the message actually has one.
func Compose(msg *Message, sourceLabel string, addSourceInfo, addTimestamp bool) Payload {
	text := msg.Text

	var footer []string
	if addSourceInfo {
		footer = append(footer, fmt.Sprintf(sourceFooterFormat, sourceLabel))
	}
	if addTimestamp && !msg.Time.IsZero() {
		footer = append(footer, fmt.Sprintf(timeFooterFormat, msg.Time.Format(footerTimeLayout)))
	}
	if len(footer) > 0 {
		text += "\n\n" + strings.Join(footer, footerSeparator)
	}

	return Payload{
		Text:  text,
		Media: pickMedia(msg.Media),
	}
}

// pickMedia selects exactly one attachment by the fixed priority order,
// resolving the ambiguity of messages that logically carry several kinds.
func pickMedia(media []Media) *Media {
	if len(media) == 0 {
		return nil
	}
	for _, kind := range mediaPriority {
		for i := range media {
			if media[i].Kind == kind {
				return &media[i]
			}
		}
	}
	// Unclassified kinds fall through the priority table; take the first.
	return &media[0]
}
