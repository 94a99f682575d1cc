package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

// FriendAPI is the backend surface used by Friends.
type FriendAPI interface {
	Friends(ctx context.Context) ([]api.UserDTO, error)
	ReceivedFriendRequests(ctx context.Context) ([]api.UserDTO, error)
	SentFriendRequests(ctx context.Context) ([]api.UserDTO, error)
	AcceptFriend(ctx context.Context, senderID string) error
	CancelFriendRequest(ctx context.Context, requestID string) error
}

type Friend struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Email       string `json:"email,omitempty"`
}

func friendFromDTO(u api.UserDTO) Friend {
	return Friend{ID: u.ID, DisplayName: u.Label(), PhotoURL: u.Photo(), Email: u.Email}
}

// Friends wraps the friend list and friend request endpoints.
type Friends struct {
	api FriendAPI
	log zerolog.Logger
}

func NewFriends(f FriendAPI, logger zerolog.Logger) *Friends {
	return &Friends{api: f, log: logger.With().Str("component", "friends").Logger()}
}

func (f *Friends) List(ctx context.Context) ([]Friend, error) {
	return f.list(ctx, "list friends", f.api.Friends)
}

// Received lists requests waiting for the user's answer.
func (f *Friends) Received(ctx context.Context) ([]Friend, error) {
	return f.list(ctx, "list received requests", f.api.ReceivedFriendRequests)
}

// Sent lists requests the user may still cancel.
func (f *Friends) Sent(ctx context.Context) ([]Friend, error) {
	return f.list(ctx, "list sent requests", f.api.SentFriendRequests)
}

func (f *Friends) list(ctx context.Context, op string, fetch func(context.Context) ([]api.UserDTO, error)) ([]Friend, error) {
	dtos, err := fetch(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg(op + " failed")
		return nil, err
	}
	out := make([]Friend, 0, len(dtos))
	for _, u := range dtos {
		out = append(out, friendFromDTO(u))
	}
	return out, nil
}

func (f *Friends) Accept(ctx context.Context, senderID string) error {
	if senderID == "" {
		return api.Validation("accept friend", "sender is required")
	}
	if err := f.api.AcceptFriend(ctx, senderID); err != nil {
		f.log.Warn().Err(err).Str("sender", senderID).Msg("accept friend failed")
		return api.Reclassify(err, api.KindActionFailed, "accept friend")
	}
	return nil
}

func (f *Friends) Cancel(ctx context.Context, requestID string) error {
	if requestID == "" {
		return api.Validation("cancel friend request", "request is required")
	}
	if err := f.api.CancelFriendRequest(ctx, requestID); err != nil {
		f.log.Warn().Err(err).Str("request", requestID).Msg("cancel friend request failed")
		return api.Reclassify(err, api.KindActionFailed, "cancel friend request")
	}
	return nil
}

// FilterFriends matches query against display name or email, ignoring case.
func FilterFriends(friends []Friend, query string) []Friend {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Friend, 0, len(friends))
	for _, fr := range friends {
		if q == "" ||
			strings.Contains(strings.ToLower(fr.DisplayName), q) ||
			strings.Contains(strings.ToLower(fr.Email), q) {
			out = append(out, fr)
		}
	}
	return out
}
