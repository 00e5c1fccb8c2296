// Package entity contains the core business objects of the project.
package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength bounds the content of a chat message.
const MaxMessageLength = 2000

// Message is an append-only chat message inside a match.
type Message struct {
	ID        uuid.UUID `json:"id"`         // The Global Unique Identifier (GUID) for the message.
	MatchID   uuid.UUID `json:"match_id"`   // The conversation.
	SenderID  uuid.UUID `json:"sender_id"`  // The author.
	Content   string    `json:"content"`    // Message body.
	CreatedAt time.Time `json:"created_at"` // Ordering key.
}

func (m *Message) Kind() Kind          { return KindMessage }
func (m *Message) RecordID() uuid.UUID { return m.ID }
func (m *Message) Version() time.Time  { return m.CreatedAt }

func (m *Message) Indexes() []IndexValue {
	return []IndexValue{{Key: ByMatch, Value: m.MatchID}, {Key: ByUser, Value: m.SenderID}}
}

// SortMessages orders messages by creation time, then id.
func SortMessages(messages []*Message) {
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}

		return messages[i].ID.String() < messages[j].ID.String()
	})
}
