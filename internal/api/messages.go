package api

import (
	"context"
	"net/url"

	"github.com/valyala/fasthttp"
)

// Message mutations addressed by message id.
const (
	MutationUnsent  = "unsent-message"
	MutationPin     = "pin-message"
	MutationUnpin   = "unpin-message"
	MutationHide    = "hide-message"
	MutationReact   = "react-message"
	MutationForward = "forward-message"
)

// Messages returns the ordered message list of a room.
func (c *Client) Messages(ctx context.Context, roomID string) ([]MessageDTO, error) {
	var out []MessageDTO
	if err := c.getJSON(ctx, "/api/messages/"+url.PathEscape(roomID), "/api/messages/{roomId}", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessageRequest is the body of /api/send-message.
type SendMessageRequest struct {
	Data SendMessageData `json:"data"`
}

// SendMessageData is the wrapped payload.
type SendMessageData struct {
	ChatRoomID string `json:"chatRoomId"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Reply      string `json:"reply,omitempty"`
}

// SendMessage creates a message.
func (c *Client) SendMessage(ctx context.Context, data SendMessageData) error {
	return c.sendJSON(ctx, fasthttp.MethodPost, "/api/send-message", "/api/send-message",
		SendMessageRequest{Data: data}, nil, true)
}

// SendMedia uploads a file into a room.
func (c *Client) SendMedia(ctx context.Context, roomID string, file FormFile) ([]MessageDTO, error) {
	file.Field = "media"
	var out []MessageDTO
	err := c.sendMultipart(ctx, "/api/send-media", "/api/send-media",
		map[string]string{"chatRoomId": roomID}, &file, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MutateMessage issues PATCH /{mutation}/{messageId} with an optional body.
func (c *Client) MutateMessage(ctx context.Context, mutation, messageID string, body interface{}) error {
	return c.sendJSON(ctx, fasthttp.MethodPatch, "/"+mutation+"/"+url.PathEscape(messageID),
		"/"+mutation+"/{messageId}", body, nil, true)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.sendJSON(ctx, fasthttp.MethodDelete, "/message/"+url.PathEscape(messageID),
		"/message/{messageId}", nil, nil, true)
}
