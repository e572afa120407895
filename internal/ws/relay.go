package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"roadassist/internal/metrics"
	"roadassist/internal/models"
	"roadassist/pkg/location"
	"roadassist/pkg/proximity"
)

// Inbound events.
const (
	EventAuthenticate      = "authenticate"
	EventPrivateMessage    = "private_message"
	EventLocationUpdate    = "location_update"
	EventEmergencyRequest  = "emergency_request"
	EventEmergencyAccepted = "emergency_accepted"
	EventProviderLocation  = "emergency_provider_location"
	EventTyping            = "typing"
	EventMarkRead          = "mark_read"
	EventDisconnect        = "disconnect"
)

// Outbound events.
const (
	EventAuthenticated           = "authenticated"
	EventError                   = "error"
	EventNewMessage              = "new_message"
	EventMessageSent             = "message_sent"
	EventProviderLocationUpdate  = "provider_location_update"
	EventNewEmergencyRequest     = "new_emergency_request"
	EventProviderAssigned        = "emergency_provider_assigned"
	EventAcceptFailed            = "emergency_accept_failed"
	EventEmergencyLocationUpdate = "emergency_provider_location_update"
	EventUserTyping              = "user_typing"
	EventMessagesRead            = "messages_read"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrNotParticipant   = errors.New("not part of this request")
	ErrConnectionClosed = errors.New("connection closed")
)

type TokenVerifier interface {
	Verify(token string) (userID, role string, err error)
}

type PresenceStore interface {
	SetOnline(userID string) error
	SetOffline(userID string, at time.Time) error
}

type ChatStore interface {
	Create(m *models.ChatMessage) error
	MarkRead(ids []string, readerID string) ([]models.ChatMessage, error)
}

type UserLookup interface {
	GetByID(id string) (*models.User, error)
}

type PositionStore interface {
	SavePosition(userID string, lat, lng float64, available *bool, at time.Time) error
}

type ProviderFinder interface {
	OnlineProvidersIn(box location.BoundingBox) ([]models.User, error)
}

// EmergencyDesk owns the emergency lifecycle. Accept is expected to call
// back into ProviderAssigned once the request is claimed.
type EmergencyDesk interface {
	Get(requestID string) (*models.EmergencyRequest, error)
	Accept(ctx context.Context, requestID, providerID string, at *models.Position) (*models.EmergencyRequest, error)
}

type Deps struct {
	Tokens          TokenVerifier
	Presence        PresenceStore
	Chats           ChatStore
	Positions       PositionStore
	Providers       ProviderFinder
	Users           UserLookup
	DispatchDegrees float64
	Now             func() time.Time
}

// Relay turns inbound frames into persistence calls and targeted deliveries.
// Handlers are fire-and-forget: a failed write is logged and nothing is sent.
type Relay struct {
	hub  *Hub
	deps Deps
	desk EmergencyDesk
}

func NewRelay(hub *Hub, deps Deps) *Relay {
	if deps.DispatchDegrees <= 0 {
		deps.DispatchDegrees = proximity.DispatchDegrees
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Relay{hub: hub, deps: deps}
}

func (r *Relay) Hub() *Hub { return r.hub }

func (r *Relay) UseEmergencyDesk(d EmergencyDesk) { r.desk = d }

type errorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// HandleFrame decodes one inbound frame and runs its handler. Every
// handler acts as the user recorded on the connection, never as an ID
// supplied in the payload.
func (r *Relay) HandleFrame(ctx context.Context, c *Client, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
		r.hub.Reply(c, EventError, errorPayload{Message: "malformed frame"})
		return
	}
	switch f.Event {
	case EventAuthenticate:
		r.handleAuthenticate(c, f.Data)
		return
	case EventDisconnect:
		r.Disconnect(c)
		return
	}
	if c.UserID() == "" {
		r.hub.Reply(c, EventError, errorPayload{Event: f.Event, Message: ErrNotAuthenticated.Error()})
		return
	}

	var err error
	switch f.Event {
	case EventPrivateMessage:
		var p struct {
			ReceiverID string `json:"receiverId"`
			Message    string `json:"message"`
		}
		if err = decode(f.Data, &p); err == nil {
			_, err = r.SendChat(c, p.ReceiverID, p.Message)
		}
	case EventLocationUpdate:
		var p struct {
			Latitude    *float64 `json:"latitude"`
			Longitude   *float64 `json:"longitude"`
			IsAvailable *bool    `json:"isAvailable"`
		}
		if err = decode(f.Data, &p); err == nil {
			if p.Latitude == nil || p.Longitude == nil {
				err = ErrInvalidPayload
				break
			}
			err = r.UpdateLocation(c, *p.Latitude, *p.Longitude, p.IsAvailable)
		}
	case EventEmergencyRequest:
		var p struct {
			RequestID string           `json:"requestId"`
			Location  *models.Position `json:"location"`
		}
		if err = decode(f.Data, &p); err == nil {
			err = r.requestEmergency(c, p.RequestID, p.Location)
		}
	case EventEmergencyAccepted:
		var p struct {
			RequestID        string           `json:"requestId"`
			ProviderLocation *models.Position `json:"providerLocation"`
		}
		if err = decode(f.Data, &p); err == nil {
			err = r.acceptEmergency(ctx, c, p.RequestID, p.ProviderLocation)
		}
	case EventProviderLocation:
		var p struct {
			RequestID string           `json:"requestId"`
			Location  *models.Position `json:"location"`
		}
		if err = decode(f.Data, &p); err == nil {
			if p.Location == nil {
				err = ErrInvalidPayload
				break
			}
			err = r.RelayProviderLocation(c, p.RequestID, *p.Location)
		}
	case EventTyping:
		var p struct {
			ReceiverID string `json:"receiverId"`
		}
		if err = decode(f.Data, &p); err == nil {
			r.Typing(c, p.ReceiverID)
		}
	case EventMarkRead:
		var p struct {
			MessageIDs []string `json:"messageIds"`
		}
		if err = decode(f.Data, &p); err == nil {
			err = r.MarkRead(c, p.MessageIDs)
		}
	default:
		log.Printf("[relay] unknown event %q from %s", f.Event, c.UserID())
		return
	}
	if err != nil {
		log.Printf("[relay] %s from %s: %v", f.Event, c.UserID(), err)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

func (r *Relay) handleAuthenticate(c *Client, data json.RawMessage) {
	var p struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Token == "" {
		// A bare string is accepted as the token.
		var s string
		if json.Unmarshal(data, &s) != nil || s == "" {
			r.hub.Reply(c, EventError, errorPayload{Event: EventAuthenticate, Message: "token required"})
			return
		}
		p.Token = s
	}
	r.Authenticate(c, p.Token)
}

// Authenticate binds the connection to the token's user and marks them online.
func (r *Relay) Authenticate(c *Client, token string) error {
	userID, role, err := r.deps.Tokens.Verify(token)
	if err != nil {
		r.hub.Reply(c, EventError, errorPayload{Event: EventAuthenticate, Message: "invalid token"})
		return err
	}
	if prev := c.UserID(); prev != "" && prev != userID {
		r.hub.Reply(c, EventError, errorPayload{Event: EventAuthenticate, Message: "connection already authenticated"})
		return ErrInvalidPayload
	}
	if !r.hub.Join(c, userID, role) {
		return ErrConnectionClosed
	}
	if err := r.deps.Presence.SetOnline(userID); err != nil {
		log.Printf("[relay] set online %s: %v", userID, err)
	}
	r.hub.Reply(c, EventAuthenticated, map[string]string{"userId": userID, "role": role})
	return nil
}

// SendChat stores the message, delivers it to the receiver's connections and
// acknowledges every connection of the sender. Nothing is emitted if the
// store fails.
func (r *Relay) SendChat(c *Client, receiverID, text string) (*models.ChatMessage, error) {
	if receiverID == "" || text == "" {
		return nil, ErrInvalidPayload
	}
	m := &models.ChatMessage{SenderID: c.UserID(), ReceiverID: receiverID, Message: text}
	if err := r.deps.Chats.Create(m); err != nil {
		return nil, err
	}
	r.DeliverChat(m)
	r.hub.EmitTo(m.SenderID, EventMessageSent, map[string]string{"messageId": m.ID, "status": "delivered"})
	return m, nil
}

type chatSender struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
}

// chatFrame is a stored message plus a public view of its sender.
type chatFrame struct {
	*models.ChatMessage
	Sender *chatSender `json:"sender,omitempty"`
}

// DeliverChat pushes an already stored message to its receiver.
func (r *Relay) DeliverChat(m *models.ChatMessage) int {
	return r.hub.EmitTo(m.ReceiverID, EventNewMessage, chatFrame{ChatMessage: m, Sender: r.sender(m.SenderID)})
}

func (r *Relay) sender(userID string) *chatSender {
	if r.deps.Users == nil {
		return nil
	}
	u, err := r.deps.Users.GetByID(userID)
	if err != nil {
		log.Printf("[relay] sender lookup %s: %v", userID, err)
		return nil
	}
	return &chatSender{ID: u.ID, Name: u.Name, ProfileImage: u.ProfileImage}
}

func validPosition(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// UpdateLocation stores the sender's position and broadcasts it to every
// other connection.
func (r *Relay) UpdateLocation(c *Client, lat, lng float64, available *bool) error {
	if !validPosition(lat, lng) {
		return ErrInvalidPayload
	}
	userID := c.UserID()
	now := r.deps.Now()
	if err := r.deps.Positions.SavePosition(userID, lat, lng, available, now); err != nil {
		return err
	}
	r.broadcastPosition(userID, lat, lng, available, now, c)
	return nil
}

// BroadcastPosition announces an already stored position to every connection.
func (r *Relay) BroadcastPosition(userID string, lat, lng float64, available *bool) int {
	return r.broadcastPosition(userID, lat, lng, available, r.deps.Now(), nil)
}

func (r *Relay) broadcastPosition(userID string, lat, lng float64, available *bool, at time.Time, except *Client) int {
	payload := map[string]interface{}{
		"userId":    userID,
		"latitude":  lat,
		"longitude": lng,
		"updatedAt": at,
	}
	if available != nil {
		payload["isAvailable"] = *available
	}
	return r.hub.Broadcast(EventProviderLocationUpdate, payload, except)
}

func (r *Relay) requestEmergency(c *Client, requestID string, at *models.Position) error {
	if r.desk == nil {
		return errors.New("emergency desk not configured")
	}
	req, err := r.desk.Get(requestID)
	if err != nil {
		return err
	}
	if req.UserID != c.UserID() {
		return ErrNotParticipant
	}
	pos := models.Position{Latitude: req.Latitude, Longitude: req.Longitude}
	if at != nil && validPosition(at.Latitude, at.Longitude) {
		pos = *at
	}
	r.DispatchEmergency(req, pos)
	return nil
}

// DispatchEmergency offers the request to every online provider inside the
// dispatch box around pos. It returns how many providers had a live connection.
func (r *Relay) DispatchEmergency(req *models.EmergencyRequest, pos models.Position) int {
	q := proximity.Degrees(pos.Latitude, pos.Longitude, r.deps.DispatchDegrees)
	providers, err := r.deps.Providers.OnlineProvidersIn(q.Box())
	if err != nil {
		log.Printf("[relay] dispatch %s: %v", req.ID, err)
		return 0
	}
	reached := 0
	for _, m := range proximity.Within(q, providers) {
		p := m.Item
		if p.ID == req.UserID {
			continue
		}
		payload := map[string]interface{}{
			"requestId":      req.ID,
			"userId":         req.UserID,
			"assistanceType": req.AssistanceType,
			"description":    req.Description,
			"location":       pos,
			"distanceKm":     m.DistanceKm,
			"createdAt":      req.CreatedAt,
		}
		if r.hub.EmitTo(p.ID, EventNewEmergencyRequest, payload) > 0 {
			reached++
		}
	}
	metrics.EmergencyDispatched.Observe(float64(reached))
	return reached
}

func (r *Relay) acceptEmergency(ctx context.Context, c *Client, requestID string, at *models.Position) error {
	if r.desk == nil {
		return errors.New("emergency desk not configured")
	}
	if _, err := r.desk.Accept(ctx, requestID, c.UserID(), at); err != nil {
		r.hub.Reply(c, EventAcceptFailed, map[string]string{"requestId": requestID, "message": err.Error()})
		return err
	}
	return nil
}

// ProviderAssigned tells the requester which provider claimed the request.
func (r *Relay) ProviderAssigned(req *models.EmergencyRequest, providerID string, at *models.Position) int {
	payload := map[string]interface{}{
		"requestId":  req.ID,
		"providerId": providerID,
		"status":     req.Status,
	}
	if at != nil {
		payload["providerLocation"] = at
	}
	return r.hub.EmitTo(req.UserID, EventProviderAssigned, payload)
}

// RelayProviderLocation forwards the assigned provider's live position to the requester.
func (r *Relay) RelayProviderLocation(c *Client, requestID string, at models.Position) error {
	if r.desk == nil {
		return errors.New("emergency desk not configured")
	}
	if !validPosition(at.Latitude, at.Longitude) {
		return ErrInvalidPayload
	}
	req, err := r.desk.Get(requestID)
	if err != nil {
		return err
	}
	providerID := c.UserID()
	if req.ProviderID == nil || *req.ProviderID != providerID {
		return ErrNotParticipant
	}
	r.hub.EmitTo(req.UserID, EventEmergencyLocationUpdate, map[string]interface{}{
		"requestId":  req.ID,
		"providerId": providerID,
		"location":   at,
	})
	return nil
}

// Typing is never stored.
func (r *Relay) Typing(c *Client, receiverID string) {
	if receiverID == "" {
		return
	}
	r.hub.EmitTo(receiverID, EventUserTyping, map[string]string{"userId": c.UserID()})
}

// MarkRead flags the reader's received messages as read and tells each
// original sender which of their messages were read.
func (r *Relay) MarkRead(c *Client, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	readerID := c.UserID()
	updated, err := r.deps.Chats.MarkRead(ids, readerID)
	if err != nil {
		return err
	}
	r.NotifyRead(readerID, updated)
	return nil
}

// NotifyRead emits one messages_read per sender, keeping message order.
func (r *Relay) NotifyRead(readerID string, msgs []models.ChatMessage) {
	var senders []string
	bySender := make(map[string][]string)
	for _, m := range msgs {
		if _, ok := bySender[m.SenderID]; !ok {
			senders = append(senders, m.SenderID)
		}
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID)
	}
	for _, s := range senders {
		r.hub.EmitTo(s, EventMessagesRead, map[string]interface{}{
			"messageIds": bySender[s],
			"readerId":   readerID,
		})
	}
}

// Disconnect closes the connection. The user goes offline when their last
// connection on this instance closes. Safe to call more than once.
func (r *Relay) Disconnect(c *Client) {
	userID, remaining, removed := r.hub.Remove(c)
	if !removed || userID == "" || remaining > 0 {
		return
	}
	if err := r.deps.Presence.SetOffline(userID, r.deps.Now()); err != nil {
		log.Printf("[relay] set offline %s: %v", userID, err)
	}
}
