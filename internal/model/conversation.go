package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

const (
	maxTitleLen    = 50
	titleCutoffLen = 47
)

type Conversation struct {
	Base
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Title          string    `json:"title" db:"title"`
	IsArchived     bool      `json:"is_archived" db:"is_archived"`
}

type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID uuid.UUID `json:"conversation_id" db:"conversation_id"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	Tokens         *int      `json:"tokens,omitempty" db:"tokens"`
	MetaInfo       JSONMap   `json:"meta_info,omitempty" db:"meta_info"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ConversationTitle derives a conversation title from the opening query.
func ConversationTitle(query string) string {
	r := []rune(strings.TrimSpace(query))
	if len(r) <= maxTitleLen {
		return string(r)
	}
	return string(r[:titleCutoffLen]) + "..."
}

type AssistantQueryRequest struct {
	Query          string     `json:"query" binding:"required,max=4000"`
	ConversationID *uuid.UUID `json:"conversation_id"`
}

type AssistantResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Response       string    `json:"response"`
	Message        *Message  `json:"message,omitempty"`
}
