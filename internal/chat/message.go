package chat

import (
	"strings"
	"time"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeAudio MessageType = "audio"
	TypeVideo MessageType = "video"
)

// RecalledPlaceholder is shown instead of a recalled message's content.
const RecalledPlaceholder = "Message was recalled"

type Reaction struct {
	Emoji     string `json:"emoji"`
	ReactorID string `json:"reactor_id"`
}

// Message is one entry of a room's authoritative list. Exactly one of
// Content (text) and MediaRef (image, audio, video) is set.
type Message struct {
	ID                string      `json:"id"`
	RoomID            string      `json:"room_id"`
	SenderID          string      `json:"sender_id"`
	SenderDisplayName string      `json:"sender_display_name,omitempty"`
	Type              MessageType `json:"type"`
	Content           string      `json:"content,omitempty"`
	MediaRef          string      `json:"media_ref,omitempty"`
	ReplyTo           string      `json:"reply_to,omitempty"`
	SentAt            time.Time   `json:"sent_at"`
	IsPinned          bool        `json:"is_pinned"`
	IsHidden          bool        `json:"is_hidden"`
	IsRecalled        bool        `json:"is_recalled"`
	Reactions         []Reaction  `json:"reactions,omitempty"`
}

// DisplayText is what a list row shows: nothing for hidden messages, a
// placeholder for recalled ones.
func (m Message) DisplayText() string {
	switch {
	case m.IsHidden:
		return ""
	case m.IsRecalled:
		return RecalledPlaceholder
	case m.Type == TypeText:
		return m.Content
	}
	return m.MediaRef
}

func parseMessageType(s string) MessageType {
	switch MessageType(strings.ToLower(s)) {
	case TypeImage:
		return TypeImage
	case TypeAudio:
		return TypeAudio
	case TypeVideo:
		return TypeVideo
	}
	return TypeText
}

func messageFromDTO(d api.MessageDTO, roomID string) Message {
	m := Message{
		ID:                d.Key(),
		RoomID:            d.ChatRoomID,
		SenderID:          d.SenderID,
		SenderDisplayName: d.SenderName,
		Type:              parseMessageType(d.Type),
		ReplyTo:           d.Reply,
		SentAt:            d.CreatedAt,
		IsPinned:          d.IsPinned,
		IsHidden:          d.IsHidden,
		IsRecalled:        d.IsRecalled,
	}
	if m.RoomID == "" {
		m.RoomID = roomID
	}
	if m.Type == TypeText {
		m.Content = d.Content
	} else if d.Media != nil && d.Media.URL != "" {
		m.MediaRef = d.Media.URL
	} else {
		// Some media rows carry the url in content.
		m.MediaRef = d.Content
	}
	for _, r := range d.Reactions {
		m.Reactions = append(m.Reactions, Reaction{Emoji: r.Emoji, ReactorID: r.UserID})
	}
	return m
}

// ChatRoom is the directory's view of a conversation.
type ChatRoom struct {
	ID                 string      `json:"id"`
	DisplayName        string      `json:"display_name"`
	AvatarRef          string      `json:"avatar_ref,omitempty"`
	IsGroup            bool        `json:"is_group"`
	GroupSource        GroupSource `json:"group_source"`
	LastMessagePreview string      `json:"last_message_preview,omitempty"`
	UnreadCount        int         `json:"unread_count"`
	MemberCount        int         `json:"member_count"`
}

type Role int

const (
	RoleMember Role = iota
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "OWNER"
	case RoleAdmin:
		return "ADMIN"
	}
	return "MEMBER"
}

// RoleAdminName is the role string the backend uses for administrators.
const RoleAdminName = "ADMIN"

type GroupMember struct {
	UserID        string    `json:"user_id"`
	RoomID        string    `json:"room_id"`
	DisplayName   string    `json:"display_name"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	IsOwner       bool      `json:"is_owner"`
	AddedByUserID string    `json:"added_by_user_id,omitempty"`
	AddedAt       time.Time `json:"added_at"`
}

// IsAdmin reports whether the member holds the ADMIN role.
func (m GroupMember) IsAdmin() bool {
	for _, r := range m.Roles {
		if strings.EqualFold(r, RoleAdminName) {
			return true
		}
	}
	return false
}

// Group is a group room's ownership and membership.
type Group struct {
	RoomID  string        `json:"room_id"`
	Name    string        `json:"name"`
	OwnerID string        `json:"owner_id"`
	Members []GroupMember `json:"members"`
}

// RoomSignal is a lightweight push telling a UI to re-read a room. It
// carries no message content.
type RoomSignal struct {
	Kind   string `json:"kind"` // "room_update"
	RoomID string `json:"room_id"`
}

const SignalRoomUpdate = "room_update"
