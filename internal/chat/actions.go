package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
	"github.com/pelusa-v/pelusa-chat-client/internal/metrics"
)

// Mutator is the backend surface used by Coordinator.
type Mutator interface {
	SendMessage(ctx context.Context, data api.SendMessageData) error
	SendMedia(ctx context.Context, roomID string, file api.FormFile) ([]api.MessageDTO, error)
	MutateMessage(ctx context.Context, mutation, messageID string, body interface{}) error
	DeleteMessage(ctx context.Context, messageID string) error
}

// Capability is a device permission a media pick depends on.
type Capability string

const (
	CapMediaLibrary Capability = "media_library"
	CapCamera       Capability = "camera"
	CapMicrophone   Capability = "microphone"
)

// PermissionChecker asks the host whether a device capability is granted.
type PermissionChecker interface {
	Granted(ctx context.Context, c Capability) (bool, error)
}

// AllowAll grants every capability. Used where no device layer exists.
type AllowAll struct{}

func (AllowAll) Granted(context.Context, Capability) (bool, error) { return true, nil }

// Media is a picked file ready for upload.
type Media struct {
	Name        string
	ContentType string
	Data        []byte
	Source      Capability
}

// Coordinator runs user mutations. Each is one request followed by a
// reload of the affected room; nothing is applied locally ahead of the
// server.
type Coordinator struct {
	api    Mutator
	sync   *Synchronizer
	tokens api.TokenSource
	perms  PermissionChecker
	log    zerolog.Logger

	mu     sync.Mutex
	drafts map[string]string
}

func NewCoordinator(m Mutator, s *Synchronizer, tokens api.TokenSource, perms PermissionChecker, logger zerolog.Logger) *Coordinator {
	if perms == nil {
		perms = AllowAll{}
	}
	return &Coordinator{
		api:    m,
		sync:   s,
		tokens: tokens,
		perms:  perms,
		log:    logger.With().Str("component", "actions").Logger(),
		drafts: make(map[string]string),
	}
}

func (c *Coordinator) requireToken(op string) error {
	if c.tokens == nil || c.tokens.Token() == "" {
		return &api.Error{Kind: api.KindAuth, Op: op, Message: "no session token"}
	}
	return nil
}

// Draft returns the unsent text kept for roomID after a failed send.
func (c *Coordinator) Draft(roomID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drafts[roomID]
}

func (c *Coordinator) setDraft(roomID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "" {
		delete(c.drafts, roomID)
		return
	}
	c.drafts[roomID] = text
}

// ClearDrafts drops every draft.
func (c *Coordinator) ClearDrafts() {
	c.mu.Lock()
	c.drafts = make(map[string]string)
	c.mu.Unlock()
}

// SendText sends a text message, optionally as a reply. On failure the
// content is kept as the room's draft.
func (c *Coordinator) SendText(ctx context.Context, roomID, content, replyTo string) error {
	const action = "send"
	if roomID == "" {
		return c.done(action, api.Validation(action, "room is required"))
	}
	if strings.TrimSpace(content) == "" {
		return c.done(action, api.Validation(action, "message is empty"))
	}
	if err := c.requireToken(action); err != nil {
		return c.done(action, err)
	}
	err := c.api.SendMessage(ctx, api.SendMessageData{
		ChatRoomID: roomID,
		Content:    content,
		Type:       string(TypeText),
		Reply:      replyTo,
	})
	if err != nil {
		c.setDraft(roomID, content)
		c.log.Warn().Err(err).Str("room", roomID).Str("action", action).Msg("send failed, draft kept")
		return c.done(action, api.Reclassify(err, api.KindSendFailed, action))
	}
	c.setDraft(roomID, "")
	c.reload(ctx, action, roomID)
	return c.done(action, nil)
}

// MediaType maps a MIME type to a message type.
func MediaType(contentType string) (MessageType, bool) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return TypeImage, true
	case strings.HasPrefix(ct, "audio/"):
		return TypeAudio, true
	case strings.HasPrefix(ct, "video/"):
		return TypeVideo, true
	}
	return "", false
}

// SendMedia uploads a picked file. A refused device permission fails
// before any request and is not retried.
func (c *Coordinator) SendMedia(ctx context.Context, roomID string, m Media) error {
	const action = "send_media"
	if roomID == "" {
		return c.done(action, api.Validation(action, "room is required"))
	}
	if len(m.Data) == 0 || m.Name == "" {
		return c.done(action, api.Validation(action, "no file selected"))
	}
	if _, ok := MediaType(m.ContentType); !ok {
		return c.done(action, api.Validation(action, "unsupported media type "+m.ContentType))
	}
	src := m.Source
	if src == "" {
		src = CapMediaLibrary
	}
	granted, err := c.perms.Granted(ctx, src)
	if err != nil || !granted {
		c.log.Warn().Err(err).Str("room", roomID).Str("capability", string(src)).Msg("device permission refused")
		return c.done(action, &api.Error{Kind: api.KindPermissionDenied, Op: action, Message: "permission to access " + string(src) + " was denied", Err: err})
	}
	if err := c.requireToken(action); err != nil {
		return c.done(action, err)
	}
	_, err = c.api.SendMedia(ctx, roomID, api.FormFile{Name: m.Name, ContentType: m.ContentType, Data: m.Data})
	if err != nil {
		c.log.Warn().Err(err).Str("room", roomID).Str("action", action).Msg("upload failed")
		return c.done(action, api.Reclassify(err, api.KindUploadFailed, action))
	}
	c.reload(ctx, action, roomID)
	return c.done(action, nil)
}

// Recall retracts a message the user sent.
func (c *Coordinator) Recall(ctx context.Context, roomID, messageID string) error {
	return c.mutate(ctx, "recall", roomID, messageID, api.MutationUnsent, nil)
}

// Pin pins a message. Pinning an already pinned message is still sent.
func (c *Coordinator) Pin(ctx context.Context, roomID, messageID string) error {
	return c.mutate(ctx, "pin", roomID, messageID, api.MutationPin, nil)
}

func (c *Coordinator) Unpin(ctx context.Context, roomID, messageID string) error {
	return c.mutate(ctx, "unpin", roomID, messageID, api.MutationUnpin, nil)
}

// Hide suppresses a message's content for the user.
func (c *Coordinator) Hide(ctx context.Context, roomID, messageID string) error {
	return c.mutate(ctx, "hide", roomID, messageID, api.MutationHide, nil)
}

// React sets the user's reaction on a message.
func (c *Coordinator) React(ctx context.Context, roomID, messageID, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return c.done("react", api.Validation("react", "emoji is required"))
	}
	return c.mutate(ctx, "react", roomID, messageID, api.MutationReact, map[string]string{"emoji": emoji})
}

// Forward copies a message into targetRoomID. Both rooms are reloaded.
func (c *Coordinator) Forward(ctx context.Context, roomID, messageID, targetRoomID string) error {
	if targetRoomID == "" {
		return c.done("forward", api.Validation("forward", "target room is required"))
	}
	err := c.mutate(ctx, "forward", roomID, messageID, api.MutationForward,
		map[string]string{"chatRoomId": targetRoomID})
	if err == nil && targetRoomID != roomID {
		c.reload(ctx, "forward", targetRoomID)
	}
	return err
}

// Delete removes a message.
func (c *Coordinator) Delete(ctx context.Context, roomID, messageID string) error {
	const action = "delete"
	if err := c.precheck(action, roomID, messageID); err != nil {
		return c.done(action, err)
	}
	if err := c.api.DeleteMessage(ctx, messageID); err != nil {
		return c.failed(ctx, action, roomID, messageID, err)
	}
	c.reload(ctx, action, roomID)
	return c.done(action, nil)
}

func (c *Coordinator) precheck(action, roomID, messageID string) error {
	if roomID == "" || messageID == "" {
		return api.Validation(action, "room and message are required")
	}
	return c.requireToken(action)
}

func (c *Coordinator) mutate(ctx context.Context, action, roomID, messageID, mutation string, body interface{}) error {
	if err := c.precheck(action, roomID, messageID); err != nil {
		return c.done(action, err)
	}
	if err := c.api.MutateMessage(ctx, mutation, messageID, body); err != nil {
		return c.failed(ctx, action, roomID, messageID, err)
	}
	c.reload(ctx, action, roomID)
	return c.done(action, nil)
}

// failed reports a rejected mutation. When the server answered (as opposed
// to a transport failure) the room is reloaded so a message that changed
// under us, such as a pin removed by someone else, is reflected.
func (c *Coordinator) failed(ctx context.Context, action, roomID, messageID string, err error) error {
	c.log.Warn().Err(err).Str("room", roomID).Str("message", messageID).Str("action", action).Msg("action failed")
	out := api.Reclassify(err, api.KindActionFailed, action)
	if api.KindOf(out) == api.KindActionFailed {
		c.reload(ctx, action, roomID)
	}
	return c.done(action, out)
}

// reload converges the room after a mutation. A failed reload is logged;
// the mutation itself already succeeded.
func (c *Coordinator) reload(ctx context.Context, action, roomID string) {
	if err := c.sync.Reload(ctx, roomID); err != nil {
		c.log.Warn().Err(err).Str("room", roomID).Str("action", action).Msg("reload after action failed")
	}
}

func (c *Coordinator) done(action string, err error) error {
	metrics.Actions.WithLabelValues(action, metrics.Outcome(err)).Inc()
	return err
}
