package fakebackend

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pelusa-v/pelusa-chat-client/internal/api"
)

func (b *Backend) login(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return reject(c, fiber.StatusBadRequest, "invalid body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, in.Email) && u.Password == in.Password {
			return c.JSON(fiber.Map{"token": u.Token, "userId": u.ID})
		}
	}
	return reject(c, fiber.StatusUnauthorized, "wrong email or password")
}

func (b *Backend) sendOTP(c *fiber.Ctx) error {
	var in api.Registration
	if err := c.BodyParser(&in); err != nil {
		return reject(c, fiber.StatusBadRequest, "invalid body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, in.Email) {
			return c.JSON(fiber.Map{"success": false, "message": "email already registered"})
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

func (b *Backend) register(c *fiber.Ctx) error {
	var in api.Registration
	if err := c.BodyParser(&in); err != nil {
		return reject(c, fiber.StatusBadRequest, "invalid body")
	}
	if in.OTP != ValidOTP {
		return c.JSON(fiber.Map{"success": false, "message": "invalid verification code"})
	}
	b.mu.Lock()
	b.addUserLocked(in.Email, in.Password, in.DisplayName)
	b.mu.Unlock()
	return c.JSON(fiber.Map{"success": true})
}

func (b *Backend) userDTO(u *User) api.UserDTO {
	return api.UserDTO{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

func (b *Backend) profile(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.users[currentUser(c)]
	return c.JSON(fiber.Map{"data": b.userDTO(u)})
}

func (b *Backend) user(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[c.Params("userId")]
	if !ok {
		return reject(c, fiber.StatusNotFound, "user not found")
	}
	return c.JSON(b.userDTO(u))
}

func (b *Backend) listRooms(c *fiber.Ctx) error {
	uid := currentUser(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []api.RoomDTO{}
	for _, r := range b.rooms {
		if !b.isMember(r, uid) {
			continue
		}
		dto := api.RoomDTO{ID: r.ID, Name: r.Name, Type: r.Type, IsGroup: r.IsGroup}
		for _, m := range r.Members {
			raw, _ := json.Marshal(m)
			dto.Members = append(dto.Members, raw)
		}
		if list := b.messages[r.ID]; len(list) > 0 {
			dto.LastMessage = &api.LastMessageDTO{Text: list[len(list)-1].Content}
		}
		out = append(out, dto)
	}
	return c.JSON(out)
}

func (b *Backend) listMessages(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.roomLocked(roomID)
	if r == nil {
		return reject(c, fiber.StatusNotFound, "room not found")
	}
	out := make([]api.MessageDTO, 0, len(b.messages[roomID]))
	for _, m := range b.messages[roomID] {
		out = append(out, *m)
	}
	return c.JSON(out)
}

func (b *Backend) sendMessage(c *fiber.Ctx) error {
	var in api.SendMessageRequest
	if err := c.BodyParser(&in); err != nil {
		return reject(c, fiber.StatusBadRequest, "invalid body")
	}
	uid := currentUser(c)
	b.mu.Lock()
	r := b.roomLocked(in.Data.ChatRoomID)
	if r == nil || !b.isMember(r, uid) {
		b.mu.Unlock()
		return reject(c, fiber.StatusNotFound, "room not found")
	}
	m := b.appendLocked(r.ID, uid, in.Data.Type, in.Data.Content, nil, in.Data.Reply)
	out := *m
	b.mu.Unlock()
	b.Broadcast(r.ID, "message")
	return c.JSON(fiber.Map{"data": out})
}

func (b *Backend) sendMedia(c *fiber.Ctx) error {
	roomID := c.FormValue("chatRoomId")
	fh, err := c.FormFile("media")
	if err != nil {
		return reject(c, fiber.StatusBadRequest, "media file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return reject(c, fiber.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	if _, err := io.Copy(io.Discard, f); err != nil {
		return reject(c, fiber.StatusBadRequest, "unreadable file")
	}

	typ := "image"
	ct := fh.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "audio/"):
		typ = "audio"
	case strings.HasPrefix(ct, "video/"):
		typ = "video"
	}

	uid := currentUser(c)
	b.mu.Lock()
	r := b.roomLocked(roomID)
	if r == nil || !b.isMember(r, uid) {
		b.mu.Unlock()
		return reject(c, fiber.StatusNotFound, "room not found")
	}
	media := &api.MediaDTO{URL: "/media/" + uuid.NewString() + "/" + fh.Filename}
	m := b.appendLocked(roomID, uid, typ, "", media, "")
	out := []api.MessageDTO{*m}
	b.mu.Unlock()
	b.Broadcast(roomID, "message")
	return c.JSON(out)
}

func (b *Backend) mutate(c *fiber.Ctx) error {
	mutation := c.Params("mutation")
	uid := currentUser(c)

	b.mu.Lock()
	m, roomID := b.findMessageLocked(c.Params("messageId"))
	if m == nil {
		b.mu.Unlock()
		return reject(c, fiber.StatusNotFound, "message not found")
	}

	event := "message"
	switch mutation {
	case api.MutationUnsent:
		if m.SenderID != uid {
			b.mu.Unlock()
			return reject(c, fiber.StatusBadRequest, "only the sender can recall a message")
		}
		m.IsRecalled = true
		event = "recall"
	case api.MutationPin:
		// One pinned message per room; the latest pin wins.
		for _, other := range b.messages[roomID] {
			other.IsPinned = false
		}
		m.IsPinned = true
		event = "pin"
	case api.MutationUnpin:
		if !m.IsPinned {
			b.mu.Unlock()
			return reject(c, fiber.StatusBadRequest, "message is not pinned")
		}
		m.IsPinned = false
		event = "unpin"
	case api.MutationHide:
		m.IsHidden = true
	case api.MutationReact:
		var in struct {
			Emoji string `json:"emoji"`
		}
		_ = c.BodyParser(&in)
		if in.Emoji == "" {
			b.mu.Unlock()
			return reject(c, fiber.StatusBadRequest, "emoji is required")
		}
		kept := m.Reactions[:0]
		for _, r := range m.Reactions {
			if r.UserID != uid {
				kept = append(kept, r)
			}
		}
		m.Reactions = append(kept, api.ReactionDTO{Emoji: in.Emoji, UserID: uid})
		event = "reaction"
	case api.MutationForward:
		var in struct {
			ChatRoomID string `json:"chatRoomId"`
		}
		_ = c.BodyParser(&in)
		target := b.roomLocked(in.ChatRoomID)
		if target == nil || !b.isMember(target, uid) {
			b.mu.Unlock()
			return reject(c, fiber.StatusBadRequest, "target room not found")
		}
		b.appendLocked(target.ID, uid, m.Type, m.Content, m.Media, "")
		b.mu.Unlock()
		b.Broadcast(target.ID, "message")
		return c.JSON(fiber.Map{"success": true})
	default:
		b.mu.Unlock()
		return reject(c, fiber.StatusNotFound, "unknown mutation")
	}
	b.mu.Unlock()
	b.Broadcast(roomID, event)
	return c.JSON(fiber.Map{"success": true})
}

func (b *Backend) deleteMessage(c *fiber.Ctx) error {
	id := c.Params("messageId")
	b.mu.Lock()
	m, roomID := b.findMessageLocked(id)
	if m == nil {
		b.mu.Unlock()
		return reject(c, fiber.StatusNotFound, "message not found")
	}
	list := b.messages[roomID]
	for i, x := range list {
		if x.ID == id {
			b.messages[roomID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	b.Broadcast(roomID, "message")
	return c.JSON(fiber.Map{"success": true})
}

func (b *Backend) createGroup(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	var members []string
	if err := json.Unmarshal([]byte(c.FormValue("members")), &members); err != nil || name == "" {
		return reject(c, fiber.StatusBadRequest, "name and members are required")
	}
	uid := currentUser(c)
	room := Room{Name: name, Type: "group", OwnerID: uid, Members: append([]string{uid}, members...)}
	id := b.AddRoom(room)
	return c.JSON(fiber.Map{"data": fiber.Map{"idChatRoom": id}})
}

func (b *Backend) groupInfo(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.roomLocked(c.Params("roomId"))
	if r == nil {
		return reject(c, fiber.StatusNotFound, "room not found")
	}
	info := api.GroupInfoDTO{Name: r.Name, OwnerID: r.OwnerID}
	for _, m := range r.Members {
		dto := api.GroupMemberDTO{UserID: m, Roles: []string{}}
		if r.Admins[m] {
			dto.Roles = append(dto.Roles, "ADMIN")
		}
		if m != r.OwnerID {
			dto.AddByUserID = r.OwnerID
		}
		info.Members = append(info.Members, dto)
	}
	return c.JSON(info)
}

func (b *Backend) groupAdmin(c *fiber.Ctx) error {
	var in struct {
		MemberID string `json:"memberId"`
	}
	if err := c.BodyParser(&in); err != nil || in.MemberID == "" {
		return reject(c, fiber.StatusBadRequest, "memberId is required")
	}
	uid := currentUser(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.roomLocked(c.Params("roomId"))
	if r == nil {
		return reject(c, fiber.StatusNotFound, "room not found")
	}
	if uid != r.OwnerID && !r.Admins[uid] {
		return reject(c, fiber.StatusBadRequest, "not allowed")
	}
	if in.MemberID == r.OwnerID {
		return reject(c, fiber.StatusBadRequest, "the owner cannot be changed")
	}
	switch c.Params("op") {
	case api.GroupKick:
		kept := r.Members[:0]
		for _, m := range r.Members {
			if m != in.MemberID {
				kept = append(kept, m)
			}
		}
		r.Members = kept
		delete(r.Admins, in.MemberID)
	case api.GroupSetAdmin:
		r.Admins[in.MemberID] = true
	case api.GroupRemoveAdmin:
		delete(r.Admins, in.MemberID)
	default:
		return reject(c, fiber.StatusNotFound, "unknown operation")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (b *Backend) usersLocked(ids []string) []api.UserDTO {
	out := []api.UserDTO{}
	for _, id := range ids {
		if u := b.users[id]; u != nil {
			out = append(out, b.userDTO(u))
		}
	}
	return out
}

func (b *Backend) listFriends(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(fiber.Map{"friends": b.usersLocked(b.friends[currentUser(c)])})
}

func (b *Backend) receivedRequests(c *fiber.Ctx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(b.usersLocked(b.requests[currentUser(c)]))
}

func (b *Backend) sentRequests(c *fiber.Ctx) error {
	uid := currentUser(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	var to []string
	for receiver, senders := range b.requests {
		for _, s := range senders {
			if s == uid {
				to = append(to, receiver)
			}
		}
	}
	return c.JSON(b.usersLocked(to))
}

func (b *Backend) acceptFriend(c *fiber.Ctx) error {
	var in struct {
		SenderID string `json:"senderId"`
	}
	if err := c.BodyParser(&in); err != nil || in.SenderID == "" {
		return reject(c, fiber.StatusBadRequest, "senderId is required")
	}
	uid := currentUser(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !removeID(b.requests, uid, in.SenderID) {
		return reject(c, fiber.StatusBadRequest, "no such request")
	}
	b.friends[uid] = append(b.friends[uid], in.SenderID)
	b.friends[in.SenderID] = append(b.friends[in.SenderID], uid)
	return c.JSON(fiber.Map{"success": true})
}

// cancelRequest withdraws a sent request; requestId is the receiver's id.
func (b *Backend) cancelRequest(c *fiber.Ctx) error {
	var in struct {
		RequestID string `json:"requestId"`
	}
	if err := c.BodyParser(&in); err != nil || in.RequestID == "" {
		return reject(c, fiber.StatusBadRequest, "requestId is required")
	}
	uid := currentUser(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !removeID(b.requests, in.RequestID, uid) {
		return reject(c, fiber.StatusBadRequest, "no such request")
	}
	return c.JSON(fiber.Map{"success": true})
}

func removeID(m map[string][]string, key, id string) bool {
	list := m[key]
	for i, x := range list {
		if x == id {
			m[key] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}
