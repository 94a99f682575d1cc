package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/valyala/fasthttp"
)

// Rooms returns the signed-in user's room list.
func (c *Client) Rooms(ctx context.Context) ([]RoomDTO, error) {
	var out []RoomDTO
	if err := c.getJSON(ctx, "/api/info-chat-item", "/api/info-chat-item", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateGroup creates a group room with the given members.
func (c *Client) CreateGroup(ctx context.Context, name string, members []string) error {
	encoded, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	return c.sendMultipart(ctx, "/api/creategroup", "/api/creategroup",
		map[string]string{"name": name, "members": string(encoded)}, nil, nil)
}

// GroupInfo returns owner and members of a group room.
func (c *Client) GroupInfo(ctx context.Context, roomID string) (*GroupInfoDTO, error) {
	var out GroupInfoDTO
	if err := c.getJSON(ctx, "/api/info-user/"+url.PathEscape(roomID), "/api/info-user/{roomId}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// User returns one user's public profile.
func (c *Client) User(ctx context.Context, userID string) (*UserDTO, error) {
	var out UserDTO
	if err := c.getJSON(ctx, "/api/user/"+url.PathEscape(userID), "/api/user/{userId}", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Group admin operations under /api/groups/{roomId}/.
const (
	GroupKick        = "kick-member"
	GroupSetAdmin    = "set-admin"
	GroupRemoveAdmin = "remove-admin"
)

// GroupAdmin posts {memberId} to one of the group admin endpoints.
func (c *Client) GroupAdmin(ctx context.Context, roomID, op, memberID string) error {
	body := map[string]string{"memberId": memberID}
	return c.sendJSON(ctx, fasthttp.MethodPost,
		"/api/groups/"+url.PathEscape(roomID)+"/"+op,
		"/api/groups/{roomId}/"+op, body, nil, true)
}
