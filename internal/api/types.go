package api

import (
	"encoding/json"
	"time"
)

// RoomDTO is one entry of /api/info-chat-item.
type RoomDTO struct {
	ID          string            `json:"idChatRoom"`
	Name        string            `json:"name"`
	PhotoURL    string            `json:"photoURL"`
	LastMessage *LastMessageDTO   `json:"lastMessage,omitempty"`
	Members     []json.RawMessage `json:"members,omitempty"`
	Type        string            `json:"type,omitempty"`
	IsGroup     *bool             `json:"isGroup,omitempty"`
	UnreadCount int               `json:"unreadCount"`
}

// LastMessageDTO is a room preview.
type LastMessageDTO struct {
	Text string `json:"text"`
}

// MediaDTO points at stored media.
type MediaDTO struct {
	URL string `json:"url"`
}

// ReactionDTO is a single emoji reaction.
type ReactionDTO struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

// MessageDTO is a message as the backend returns it.
type MessageDTO struct {
	ID         string        `json:"_id,omitempty"`
	AltID      string        `json:"id,omitempty"`
	ChatRoomID string        `json:"chatRoomId"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName,omitempty"`
	Type       string        `json:"type"`
	Content    string        `json:"content,omitempty"`
	Media      *MediaDTO     `json:"media,omitempty"`
	Reply      string        `json:"reply,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	IsPinned   bool          `json:"isPinned"`
	IsHidden   bool          `json:"isHidden"`
	IsRecalled bool          `json:"isRecalled"`
	Reactions  []ReactionDTO `json:"reactions,omitempty"`
}

// Key returns whichever id field the backend populated.
func (m MessageDTO) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.AltID
}

// GroupMemberDTO is one member of /api/info-user/{roomId}.
type GroupMemberDTO struct {
	UserID      string    `json:"userId"`
	Roles       []string  `json:"roles"`
	AddByUserID string    `json:"addByUserId,omitempty"`
	AddAt       time.Time `json:"addAt"`
}

// GroupInfoDTO is the group detail document.
type GroupInfoDTO struct {
	Name    string           `json:"name"`
	OwnerID string           `json:"ownerId"`
	Members []GroupMemberDTO `json:"members"`
}

// UserDTO is a user profile or friend entry.
type UserDTO struct {
	ID          string `json:"_id"`
	DisplayName string `json:"displayName,omitempty"`
	Name        string `json:"name,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Label returns the best available display name.
func (u UserDTO) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// Photo returns the best available avatar reference.
func (u UserDTO) Photo() string {
	if u.PhotoURL != "" {
		return u.PhotoURL
	}
	return u.Avatar
}

// LoginResponse carries the issued token and user id under one of several keys.
type LoginResponse struct {
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	ID      string `json:"id"`
	AltID   string `json:"_id"`
	Message string `json:"message"`
}

// User returns the user id from whichever field is set.
func (r LoginResponse) User() string {
	switch {
	case r.UserID != "":
		return r.UserID
	case r.ID != "":
		return r.ID
	}
	return r.AltID
}

// Registration is the sign-up form.
type Registration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	DateOfBirth string `json:"dateOfBirth"`
	OTP         string `json:"otp,omitempty"`
}
