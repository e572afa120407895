package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/pkg/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens map[string]string

func (f fakeTokens) Verify(token string) (string, string, error) {
	id, ok := f[token]
	if !ok {
		return "", "", errors.New("bad token")
	}
	return id, domain.RoleUser, nil
}

type fakePresence struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (f *fakePresence) SetOnline(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = append(f.online, id)
	return nil
}

func (f *fakePresence) SetOffline(id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, id)
	return nil
}

type fakeChats struct {
	mu       sync.Mutex
	msgs     map[string]*models.ChatMessage
	order    []string
	onCreate func(m *models.ChatMessage)
	fail     error
}

func newFakeChats() *fakeChats { return &fakeChats{msgs: map[string]*models.ChatMessage{}} }

func (f *fakeChats) Create(m *models.ChatMessage) error {
	if f.fail != nil {
		return f.fail
	}
	if f.onCreate != nil {
		f.onCreate(m)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = fmt.Sprintf("m%d", len(f.order)+1)
	}
	f.msgs[m.ID] = m
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeChats) MarkRead(ids []string, readerID string) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMessage
	for _, id := range ids {
		m, ok := f.msgs[id]
		if !ok || m.ReceiverID != readerID {
			continue
		}
		m.IsRead = true
		out = append(out, *m)
	}
	return out, nil
}

type fakePositions struct {
	mu    sync.Mutex
	saved map[string]models.Position
}

func (f *fakePositions) SavePosition(userID string, lat, lng float64, _ *bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]models.Position{}
	}
	f.saved[userID] = models.Position{Latitude: lat, Longitude: lng}
	return nil
}

type fakeProviders []models.User

func (f fakeProviders) OnlineProvidersIn(box location.BoundingBox) ([]models.User, error) {
	var out []models.User
	for _, u := range f {
		if u.IsOnline && box.Contains(u.Latitude, u.Longitude) {
			out = append(out, u)
		}
	}
	return out, nil
}

// looseProviders ignores the box, like a column-rounded SQL prefilter might.
type looseProviders []models.User

func (f looseProviders) OnlineProvidersIn(location.BoundingBox) ([]models.User, error) {
	return f, nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByID(id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

type fakeDesk struct {
	mu    sync.Mutex
	relay *Relay
	reqs  map[string]*models.EmergencyRequest
}

func (d *fakeDesk) Get(id string) (*models.EmergencyRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.reqs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *req
	return &cp, nil
}

func (d *fakeDesk) Accept(_ context.Context, id, providerID string, at *models.Position) (*models.EmergencyRequest, error) {
	d.mu.Lock()
	req, ok := d.reqs[id]
	if !ok || req.Status != domain.EmergencyPending {
		d.mu.Unlock()
		return nil, errors.New("request already accepted")
	}
	req.Status = domain.EmergencyInProgress
	req.ProviderID = &providerID
	cp := *req
	d.mu.Unlock()
	d.relay.ProviderAssigned(&cp, providerID, at)
	return &cp, nil
}

type harness struct {
	relay     *Relay
	presence  *fakePresence
	chats     *fakeChats
	positions *fakePositions
	desk      *fakeDesk
}

func newHarness(providers ...models.User) *harness {
	h := &harness{
		presence:  &fakePresence{},
		chats:     newFakeChats(),
		positions: &fakePositions{},
	}
	tokens := fakeTokens{}
	for _, id := range []string{"u1", "u2", "u3", "p1", "p2"} {
		tokens["tok-"+id] = id
	}
	h.relay = NewRelay(NewHub(), Deps{
		Tokens:    tokens,
		Presence:  h.presence,
		Chats:     h.chats,
		Positions: h.positions,
		Providers: fakeProviders(providers),
		Users: fakeUsers{
			"u1": {ID: "u1", Name: "Asha", ProfileImage: "https://img.example/u1.png", Email: "asha@example.com"},
		},
	})
	h.desk = &fakeDesk{relay: h.relay, reqs: map[string]*models.EmergencyRequest{}}
	h.relay.UseEmergencyDesk(h.desk)
	return h
}

// connect registers a client and authenticates it, discarding the acknowledgement.
func (h *harness) connect(t *testing.T, userID string) *Client {
	t.Helper()
	c := NewClient(16)
	h.relay.Hub().Register(c)
	require.NoError(t, h.relay.Authenticate(c, "tok-"+userID))
	assert.Equal(t, EventAuthenticated, next(t, c).Event)
	return c
}

func send(t *testing.T, h *harness, c *Client, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(Frame{Event: event, Data: raw})
	require.NoError(t, err)
	h.relay.HandleFrame(context.Background(), c, frame)
}

func next(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case b := <-c.Send:
		var f Frame
		require.NoError(t, json.Unmarshal(b, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("expected a frame")
	}
	return Frame{}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("unexpected frame %s", b)
	default:
	}
}

func TestEmitTo_NoConnectionIsDropped(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.EmitTo("ghost", EventNewMessage, map[string]string{"x": "y"}))
	assert.False(t, hub.IsOnline("ghost"))
}

func TestEmitTo_ReachesEveryConnectionOfUser(t *testing.T) {
	h := newHarness()
	a := h.connect(t, "u1")
	b := h.connect(t, "u1")
	other := h.connect(t, "u2")

	assert.Equal(t, 2, h.relay.Hub().EmitTo("u1", EventUserTyping, map[string]string{"userId": "u2"}))
	assert.Equal(t, EventUserTyping, next(t, a).Event)
	assert.Equal(t, EventUserTyping, next(t, b).Event)
	assertQuiet(t, other)
}

func TestEmitTo_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub()
	c := NewClient(1)
	hub.Register(c)
	hub.Join(c, "u1", domain.RoleUser)

	assert.Equal(t, 1, hub.EmitTo("u1", "a", nil))
	assert.Equal(t, 0, hub.EmitTo("u1", "b", nil))
}

func TestAuthenticate_BadTokenLeavesConnectionAnonymous(t *testing.T) {
	h := newHarness()
	c := NewClient(4)
	h.relay.Hub().Register(c)

	send(t, h, c, EventAuthenticate, map[string]string{"token": "nope"})

	f := next(t, c)
	assert.Equal(t, EventError, f.Event)
	assert.Empty(t, c.UserID())
	assert.Empty(t, h.presence.online)

	send(t, h, c, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "hi"})
	assert.Equal(t, EventError, next(t, c).Event)
	assert.Empty(t, h.chats.order)
}

func TestAuthenticate_AcceptsBareStringToken(t *testing.T) {
	h := newHarness()
	c := NewClient(4)
	h.relay.Hub().Register(c)

	send(t, h, c, EventAuthenticate, "tok-u1")

	assert.Equal(t, EventAuthenticated, next(t, c).Event)
	assert.Equal(t, "u1", c.UserID())
	assert.Equal(t, []string{"u1"}, h.presence.online)
}

func TestPrivateMessage_StoredBeforeDelivery(t *testing.T) {
	h := newHarness()
	sender := h.connect(t, "u1")
	receiver := h.connect(t, "u2")
	h.chats.onCreate = func(*models.ChatMessage) {
		assert.Len(t, receiver.Send, 0, "delivered before the message was stored")
	}

	send(t, h, sender, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "on my way"})

	f := next(t, receiver)
	require.Equal(t, EventNewMessage, f.Event)
	var got models.ChatMessage
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, "u1", got.SenderID)
	assert.Equal(t, "on my way", got.Message)
	assert.NotEmpty(t, got.ID)

	ack := next(t, sender)
	require.Equal(t, EventMessageSent, ack.Event)
	var sent map[string]string
	require.NoError(t, json.Unmarshal(ack.Data, &sent))
	assert.Equal(t, got.ID, sent["messageId"])
	assert.Equal(t, "delivered", sent["status"])
}

func TestPrivateMessage_AckReachesEverySenderConnection(t *testing.T) {
	h := newHarness()
	phone := h.connect(t, "u1")
	laptop := h.connect(t, "u1")
	receiver := h.connect(t, "u2")

	send(t, h, phone, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "stuck on the highway"})

	assert.Equal(t, EventNewMessage, next(t, receiver).Event)
	assert.Equal(t, EventMessageSent, next(t, phone).Event)
	assert.Equal(t, EventMessageSent, next(t, laptop).Event)
}

func TestPrivateMessage_CarriesSenderProfile(t *testing.T) {
	h := newHarness()
	sender := h.connect(t, "u1")
	receiver := h.connect(t, "u2")

	send(t, h, sender, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "hi"})

	f := next(t, receiver)
	require.Equal(t, EventNewMessage, f.Event)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, "hi", got["message"])
	assert.Equal(t, map[string]interface{}{
		"id":           "u1",
		"name":         "Asha",
		"profileImage": "https://img.example/u1.png",
	}, got["sender"])
}

func TestPrivateMessage_UnknownSenderProfileStillDelivers(t *testing.T) {
	h := newHarness()
	sender := h.connect(t, "u3")
	receiver := h.connect(t, "u2")

	send(t, h, sender, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "hi"})

	f := next(t, receiver)
	require.Equal(t, EventNewMessage, f.Event)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, "u3", got["senderId"])
	assert.NotContains(t, got, "sender")
}

func TestPrivateMessage_SenderComesFromConnection(t *testing.T) {
	h := newHarness()
	sender := h.connect(t, "u1")

	send(t, h, sender, EventPrivateMessage, map[string]string{"senderId": "u3", "receiverId": "u2", "message": "hi"})

	require.Len(t, h.chats.order, 1)
	assert.Equal(t, "u1", h.chats.msgs[h.chats.order[0]].SenderID)
}

func TestPrivateMessage_StoreFailureEmitsNothing(t *testing.T) {
	h := newHarness()
	sender := h.connect(t, "u1")
	receiver := h.connect(t, "u2")
	h.chats.fail = errors.New("db down")

	send(t, h, sender, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "hi"})

	assertQuiet(t, receiver)
	assertQuiet(t, sender)
}

func TestPrivateMessage_OfflineReceiverStillStored(t *testing.T) {
	h := newHarness()
	sender := h.connect(t, "u1")

	send(t, h, sender, EventPrivateMessage, map[string]string{"receiverId": "u2", "message": "call me"})

	assert.Len(t, h.chats.order, 1)
	assert.Equal(t, EventMessageSent, next(t, sender).Event)
}

func TestMarkRead_NotifiesEachSender(t *testing.T) {
	h := newHarness()
	u1 := h.connect(t, "u1")
	u2 := h.connect(t, "u2")
	u3 := h.connect(t, "u3")

	for _, m := range []*models.ChatMessage{
		{ID: "m1", SenderID: "u1", ReceiverID: "u2", Message: "a"},
		{ID: "m2", SenderID: "u1", ReceiverID: "u2", Message: "b"},
		{ID: "m3", SenderID: "u3", ReceiverID: "u2", Message: "c"},
		{ID: "m4", SenderID: "u2", ReceiverID: "u1", Message: "not for the reader"},
	} {
		require.NoError(t, h.chats.Create(m))
	}

	send(t, h, u2, EventMarkRead, map[string][]string{"messageIds": {"m1", "m2", "m3", "m4"}})

	type readPayload struct {
		MessageIDs []string `json:"messageIds"`
		ReaderID   string   `json:"readerId"`
	}
	var p readPayload
	f := next(t, u1)
	require.Equal(t, EventMessagesRead, f.Event)
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, readPayload{MessageIDs: []string{"m1", "m2"}, ReaderID: "u2"}, p)
	assertQuiet(t, u1)

	f = next(t, u3)
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, readPayload{MessageIDs: []string{"m3"}, ReaderID: "u2"}, p)

	assert.False(t, h.chats.msgs["m4"].IsRead)
	assertQuiet(t, u2)
}

func TestLocationUpdate_BroadcastsToOthers(t *testing.T) {
	h := newHarness()
	p1 := h.connect(t, "p1")
	u1 := h.connect(t, "u1")
	u2 := h.connect(t, "u2")

	send(t, h, p1, EventLocationUpdate, map[string]interface{}{"latitude": 27.7, "longitude": 85.3, "isAvailable": true})

	assert.Equal(t, models.Position{Latitude: 27.7, Longitude: 85.3}, h.positions.saved["p1"])
	for _, c := range []*Client{u1, u2} {
		f := next(t, c)
		assert.Equal(t, EventProviderLocationUpdate, f.Event)
		var p map[string]interface{}
		require.NoError(t, json.Unmarshal(f.Data, &p))
		assert.Equal(t, "p1", p["userId"])
		assert.Equal(t, true, p["isAvailable"])
	}
	assertQuiet(t, p1)
}

func TestLocationUpdate_RejectsOutOfRange(t *testing.T) {
	h := newHarness()
	p1 := h.connect(t, "p1")
	u1 := h.connect(t, "u1")

	send(t, h, p1, EventLocationUpdate, map[string]interface{}{"latitude": 95.0, "longitude": 85.3})

	assert.Empty(t, h.positions.saved)
	assertQuiet(t, u1)
}

func TestDispatchEmergency_OnlyNearbyOnlineProviders(t *testing.T) {
	h := newHarness(
		models.User{ID: "p1", Role: domain.RoleServiceProvider, Latitude: 27.70, Longitude: 85.30, IsOnline: true},
		models.User{ID: "p2", Role: domain.RoleServiceProvider, Latitude: 27.90, Longitude: 85.30, IsOnline: true},
	)
	near := h.connect(t, "p1")
	far := h.connect(t, "p2")
	requester := h.connect(t, "u1")

	req := &models.EmergencyRequest{ID: "e1", UserID: "u1", AssistanceType: "towing", Latitude: 27.7050, Longitude: 85.3050, Status: domain.EmergencyPending}
	h.desk.reqs["e1"] = req

	send(t, h, requester, EventEmergencyRequest, map[string]interface{}{
		"requestId": "e1",
		"location":  map[string]float64{"latitude": 27.7050, "longitude": 85.3050},
	})

	f := next(t, near)
	require.Equal(t, EventNewEmergencyRequest, f.Event)
	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "e1", p["requestId"])
	assert.Equal(t, "towing", p["assistanceType"])
	assert.InDelta(t, 0.74, p["distanceKm"], 0.05)
	assertQuiet(t, far)
	assertQuiet(t, requester)
}

func TestDispatchEmergency_RechecksBoxInMemory(t *testing.T) {
	h := newHarness()
	h.relay.deps.Providers = looseProviders{
		{ID: "p1", Role: domain.RoleServiceProvider, Latitude: 27.70, Longitude: 85.30, IsOnline: true},
		{ID: "p2", Role: domain.RoleServiceProvider, Latitude: 27.90, Longitude: 85.30, IsOnline: true},
	}
	near := h.connect(t, "p1")
	far := h.connect(t, "p2")

	req := &models.EmergencyRequest{ID: "e1", UserID: "u1", Latitude: 27.705, Longitude: 85.305}
	reached := h.relay.DispatchEmergency(req, models.Position{Latitude: 27.705, Longitude: 85.305})

	assert.Equal(t, 1, reached)
	assert.Equal(t, EventNewEmergencyRequest, next(t, near).Event)
	assertQuiet(t, far)
}

func TestDispatchEmergency_OnlyOwnerMayDispatch(t *testing.T) {
	h := newHarness(models.User{ID: "p1", Latitude: 27.7, Longitude: 85.3, IsOnline: true})
	p1 := h.connect(t, "p1")
	other := h.connect(t, "u2")
	h.desk.reqs["e1"] = &models.EmergencyRequest{ID: "e1", UserID: "u1", Latitude: 27.7, Longitude: 85.3}

	send(t, h, other, EventEmergencyRequest, map[string]string{"requestId": "e1"})

	assertQuiet(t, p1)
}

func TestEmergencyAccepted_AssignsOnce(t *testing.T) {
	h := newHarness()
	requester := h.connect(t, "u1")
	p1 := h.connect(t, "p1")
	p2 := h.connect(t, "p2")
	h.desk.reqs["e1"] = &models.EmergencyRequest{ID: "e1", UserID: "u1", Status: domain.EmergencyPending}

	send(t, h, p1, EventEmergencyAccepted, map[string]interface{}{
		"requestId":        "e1",
		"providerLocation": map[string]float64{"latitude": 27.7, "longitude": 85.3},
	})
	send(t, h, p2, EventEmergencyAccepted, map[string]string{"requestId": "e1"})

	f := next(t, requester)
	require.Equal(t, EventProviderAssigned, f.Event)
	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "p1", p["providerId"])
	assert.NotNil(t, p["providerLocation"])
	assertQuiet(t, requester)

	assert.Equal(t, EventAcceptFailed, next(t, p2).Event)
	assertQuiet(t, p1)
}

func TestProviderLocation_OnlyAssignedProviderIsRelayed(t *testing.T) {
	h := newHarness()
	requester := h.connect(t, "u1")
	p1 := h.connect(t, "p1")
	p2 := h.connect(t, "p2")
	assigned := "p1"
	h.desk.reqs["e1"] = &models.EmergencyRequest{ID: "e1", UserID: "u1", ProviderID: &assigned, Status: domain.EmergencyInProgress}

	loc := map[string]interface{}{"requestId": "e1", "location": map[string]float64{"latitude": 27.71, "longitude": 85.31}}
	send(t, h, p2, EventProviderLocation, loc)
	assertQuiet(t, requester)

	send(t, h, p1, EventProviderLocation, loc)
	f := next(t, requester)
	assert.Equal(t, EventEmergencyLocationUpdate, f.Event)
}

func TestTyping_NotStored(t *testing.T) {
	h := newHarness()
	u1 := h.connect(t, "u1")
	u2 := h.connect(t, "u2")

	send(t, h, u1, EventTyping, map[string]string{"receiverId": "u2"})

	f := next(t, u2)
	assert.Equal(t, EventUserTyping, f.Event)
	assert.JSONEq(t, `{"userId":"u1"}`, string(f.Data))
	assert.Empty(t, h.chats.order)
}

func TestDisconnect_OfflineOnlyAfterLastConnection(t *testing.T) {
	h := newHarness()
	a := h.connect(t, "u1")
	b := h.connect(t, "u1")

	h.relay.Disconnect(a)
	assert.Empty(t, h.presence.offline)
	assert.True(t, h.relay.Hub().IsOnline("u1"))

	send(t, h, b, EventDisconnect, nil)
	assert.Equal(t, []string{"u1"}, h.presence.offline)
	assert.False(t, h.relay.Hub().IsOnline("u1"))

	h.relay.Disconnect(b)
	assert.Equal(t, []string{"u1"}, h.presence.offline)
	assert.Equal(t, 0, h.relay.Hub().ClientCount())
}

func TestDisconnect_IsFinal(t *testing.T) {
	h := newHarness()
	c := h.connect(t, "u1")

	send(t, h, c, EventDisconnect, nil)
	send(t, h, c, EventAuthenticate, map[string]string{"token": "tok-u1"})

	assert.ErrorIs(t, h.relay.Authenticate(c, "tok-u1"), ErrConnectionClosed)
	assert.Equal(t, 0, h.relay.Hub().ConnectionsOf("u1"))
	assert.Equal(t, 0, h.relay.Hub().ClientCount())
	assert.False(t, h.relay.Hub().IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, h.presence.online)
	assert.Equal(t, []string{"u1"}, h.presence.offline)
}

func TestJoin_ClosedClientIsRefused(t *testing.T) {
	hub := NewHub()
	c := NewClient(1)
	hub.Register(c)
	hub.Remove(c)

	assert.False(t, hub.Join(c, "u1", domain.RoleUser))
	assert.Empty(t, c.UserID())
	assert.Equal(t, 0, hub.ClientCount())
}

func TestDisconnect_AnonymousConnection(t *testing.T) {
	h := newHarness()
	c := NewClient(1)
	h.relay.Hub().Register(c)

	h.relay.Disconnect(c)

	assert.Empty(t, h.presence.offline)
	assert.False(t, c.trySend([]byte("x")))
}
