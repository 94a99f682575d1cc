package api

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, fasthttp.MethodPost, "/api/login", "/api/login", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendOTP asks the backend to mail a registration code.
func (c *Client) SendOTP(ctx context.Context, reg Registration) error {
	reg.OTP = ""
	return c.successCall(ctx, "/api/users/send-otp", reg)
}

// Register completes sign-up with the mailed code.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.successCall(ctx, "/api/users/register", reg)
}

// successCall posts body and treats {"success": false} as a validation failure.
func (c *Client) successCall(ctx context.Context, path string, body interface{}) error {
	in, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, request{method: fasthttp.MethodPost, path: path, route: path, body: in})
	if err != nil {
		return err
	}
	var env envelope
	if len(bytes.TrimSpace(resp)) > 0 {
		_ = json.Unmarshal(resp, &env)
	}
	if env.Success != nil && !*env.Success {
		return &Error{Kind: KindValidation, Op: "POST " + path, Message: env.Message}
	}
	return nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*UserDTO, error) {
	var out UserDTO
	if err := c.getJSON(ctx, "/api/profile", "/api/profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Friends returns the friend list. The backend has answered with a bare
// array, {"data": [...]} and {"friends": [...]}; all three are accepted.
func (c *Client) Friends(ctx context.Context) ([]UserDTO, error) {
	body, err := c.do(ctx, request{method: fasthttp.MethodGet, path: "/api/getAllFriend", route: "/api/getAllFriend", auth: true})
	if err != nil {
		return nil, err
	}
	var list []UserDTO
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Data    []UserDTO `json:"data"`
		Friends []UserDTO `json:"friends"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, &Error{Kind: KindActionFailed, Op: "GET /api/getAllFriend", Message: "unexpected response from server", Err: err}
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return wrapped.Friends, nil
}

// ReceivedFriendRequests lists requests sent to the user.
func (c *Client) ReceivedFriendRequests(ctx context.Context) ([]UserDTO, error) {
	var out []UserDTO
	if err := c.getJSON(ctx, "/api/getAllFriendRequest", "/api/getAllFriendRequest", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SentFriendRequests lists requests the user sent and may still cancel.
func (c *Client) SentFriendRequests(ctx context.Context) ([]UserDTO, error) {
	var out []UserDTO
	if err := c.getJSON(ctx, "/api/getAllCancelFriendRequest", "/api/getAllCancelFriendRequest", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AcceptFriend accepts a request from senderID.
func (c *Client) AcceptFriend(ctx context.Context, senderID string) error {
	return c.sendJSON(ctx, fasthttp.MethodPost, "/api/accept-friend", "/api/accept-friend",
		map[string]string{"senderId": senderID}, nil, true)
}

// CancelFriendRequest withdraws a sent request.
func (c *Client) CancelFriendRequest(ctx context.Context, requestID string) error {
	return c.sendJSON(ctx, fasthttp.MethodPost, "/api/cancel-friend-request", "/api/cancel-friend-request",
		map[string]string{"requestId": requestID}, nil, true)
}
