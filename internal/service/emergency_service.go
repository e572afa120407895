package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"roadassist/internal/domain"
	"roadassist/internal/events"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/pkg/proximity"

	"gorm.io/gorm"
)

var (
	ErrEmergencyNotFound   = errors.New("emergency request not found")
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrAlreadyAccepted     = errors.New("this request has already been accepted")
	ErrAlreadyCompleted    = errors.New("this request has already been completed")
	ErrNotAccepted         = errors.New("this request has not been accepted yet")
	ErrNotAssignedProvider = errors.New("only the assigned provider can complete this request")
	ErrNotProvider         = errors.New("only service providers can accept requests")
	ErrInvalidPosition     = errors.New("invalid latitude or longitude")
)

// LiveChannel pushes emergency traffic to connected clients. *ws.Relay satisfies it.
type LiveChannel interface {
	DispatchEmergency(req *models.EmergencyRequest, at models.Position) int
	ProviderAssigned(req *models.EmergencyRequest, providerID string, at *models.Position) int
	DeliverChat(m *models.ChatMessage) int
}

type noLive struct{}

func (noLive) DispatchEmergency(*models.EmergencyRequest, models.Position) int { return 0 }
func (noLive) ProviderAssigned(*models.EmergencyRequest, string, *models.Position) int {
	return 0
}
func (noLive) DeliverChat(*models.ChatMessage) int { return 0 }

type EmergencyService struct {
	emergencies     *repository.EmergencyRepository
	users           *repository.UserRepository
	vehicles        *repository.VehicleRepository
	chats           *repository.ChatRepository
	notify          *NotificationService
	events          events.Publisher
	live            LiveChannel
	dispatchDegrees float64
	now             func() time.Time
}

func NewEmergencyService(
	emergencies *repository.EmergencyRepository,
	users *repository.UserRepository,
	vehicles *repository.VehicleRepository,
	chats *repository.ChatRepository,
	notify *NotificationService,
	publisher events.Publisher,
	dispatchDegrees float64,
) *EmergencyService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if dispatchDegrees <= 0 {
		dispatchDegrees = proximity.DispatchDegrees
	}
	return &EmergencyService{
		emergencies:     emergencies,
		users:           users,
		vehicles:        vehicles,
		chats:           chats,
		notify:          notify,
		events:          publisher,
		live:            noLive{},
		dispatchDegrees: dispatchDegrees,
		now:             time.Now,
	}
}

// UseLiveChannel attaches the realtime relay.
func (s *EmergencyService) UseLiveChannel(l LiveChannel) {
	if l != nil {
		s.live = l
	}
}

type EmergencyInput struct {
	VehicleID      string
	AssistanceType string
	Description    string
	Latitude       float64
	Longitude      float64
}

// Request stores a new PENDING request and reaches out to every provider in
// the dispatch box: two opening chat messages and a notification each. It
// returns the request and how many providers were contacted.
func (s *EmergencyService) Request(ctx context.Context, userID string, in EmergencyInput) (*models.EmergencyRequest, int, error) {
	if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
		return nil, 0, ErrInvalidPosition
	}
	vehicle, err := s.vehicles.GetOwned(in.VehicleID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrVehicleNotFound
		}
		return nil, 0, err
	}
	requester, err := s.users.GetByID(userID)
	if err != nil {
		return nil, 0, err
	}

	req := &models.EmergencyRequest{
		UserID:         userID,
		VehicleID:      vehicle.ID,
		AssistanceType: in.AssistanceType,
		Description:    in.Description,
		Status:         domain.EmergencyPending,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
	}
	if err := s.emergencies.Create(req); err != nil {
		return nil, 0, err
	}
	req.Vehicle = vehicle
	req.User = requester

	q := proximity.Degrees(in.Latitude, in.Longitude, s.dispatchDegrees)
	providers, err := s.users.ProvidersIn(q.Box())
	if err != nil {
		log.Printf("[emergency] provider lookup for %s: %v", req.ID, err)
	}
	contacted := 0
	for _, m := range proximity.Within(q, providers) {
		p := m.Item
		if p.ID == userID {
			continue
		}
		s.openConversation(req, requester, vehicle, &p)
		contacted++
	}

	_ = s.notify.Notify(userID, domain.NotifEmergencySent,
		fmt.Sprintf("Your emergency request has been sent to %d nearby service providers. They will contact you shortly.", contacted),
		map[string]interface{}{"requestId": req.ID, "nearbyProviders": contacted})

	s.live.DispatchEmergency(req, models.Position{Latitude: req.Latitude, Longitude: req.Longitude})
	s.publish(ctx, events.EmergencyCreated, req, contacted)
	return req, contacted, nil
}

func (s *EmergencyService) openConversation(req *models.EmergencyRequest, requester *models.User, v *models.Vehicle, p *models.User) {
	text := fmt.Sprintf("Emergency %s assistance needed for my %s. Location: %v,%v.",
		req.AssistanceType, v.Label(), req.Latitude, req.Longitude)
	if req.Description != "" {
		text += " Details: " + req.Description
	}
	msgs := []*models.ChatMessage{
		{SenderID: req.UserID, ReceiverID: p.ID, Message: text},
		{SenderID: p.ID, ReceiverID: req.UserID, Message: fmt.Sprintf(
			"I've received your emergency request for %s assistance. I'll check your location and respond shortly.", req.AssistanceType)},
	}
	if err := s.chats.CreateBatch(msgs); err != nil {
		log.Printf("[emergency] opening messages for %s -> %s: %v", req.ID, p.ID, err)
	} else {
		for _, m := range msgs {
			s.live.DeliverChat(m)
		}
	}
	_ = s.notify.Notify(p.ID, domain.NotifEmergencyRequest,
		fmt.Sprintf("Emergency assistance needed! %s needs %s assistance for their %s.", requester.Name, req.AssistanceType, v.Label()),
		map[string]interface{}{"requestId": req.ID})
}

func (s *EmergencyService) Get(requestID string) (*models.EmergencyRequest, error) {
	req, err := s.emergencies.GetByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmergencyNotFound
		}
		return nil, err
	}
	return req, nil
}

// Accept assigns the request to providerID. Of several concurrent callers
// exactly one succeeds; the rest get ErrAlreadyAccepted.
func (s *EmergencyService) Accept(ctx context.Context, requestID, providerID string, at *models.Position) (*models.EmergencyRequest, error) {
	provider, err := s.users.GetByID(providerID)
	if err != nil {
		return nil, err
	}
	if !provider.IsProvider() {
		return nil, ErrNotProvider
	}
	req, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.EmergencyPending {
		return nil, ErrAlreadyAccepted
	}
	now := s.now()
	ok, err := s.emergencies.Accept(requestID, providerID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyAccepted
	}
	req.Status = domain.EmergencyInProgress
	req.ProviderID = &providerID
	req.AcceptedAt = &now
	req.Provider = provider

	s.say(providerID, req.UserID, "I've accepted your emergency request and I'm on my way to help you.")
	_ = s.notify.Notify(req.UserID, domain.NotifEmergencyAccepted,
		"A service provider has accepted your emergency assistance request and is on their way!",
		map[string]interface{}{"requestId": req.ID, "providerId": providerID})
	s.live.ProviderAssigned(req, providerID, at)
	s.publish(ctx, events.EmergencyAccepted, req, 0)
	return req, nil
}

// Complete closes a request. Only the provider that accepted it may do so.
func (s *EmergencyService) Complete(ctx context.Context, requestID, providerID string) (*models.EmergencyRequest, error) {
	req, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case domain.EmergencyCompleted:
		return nil, ErrAlreadyCompleted
	case domain.EmergencyPending:
		return nil, ErrNotAccepted
	}
	if req.ProviderID == nil || *req.ProviderID != providerID {
		return nil, ErrNotAssignedProvider
	}
	now := s.now()
	ok, err := s.emergencies.Complete(requestID, providerID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyCompleted
	}
	req.Status = domain.EmergencyCompleted
	req.CompletedAt = &now

	s.say(providerID, req.UserID, "I've completed your emergency request. Thank you for choosing me for your support.")
	_ = s.notify.Notify(req.UserID, domain.NotifEmergencyDone,
		"A service provider has completed your emergency assistance request.",
		map[string]interface{}{"requestId": req.ID})
	s.publish(ctx, events.EmergencyCompleted, req, 0)
	return req, nil
}

func (s *EmergencyService) say(from, to, text string) {
	m := &models.ChatMessage{SenderID: from, ReceiverID: to, Message: text}
	if err := s.chats.Create(m); err != nil {
		log.Printf("[emergency] chat %s -> %s: %v", from, to, err)
		return
	}
	s.live.DeliverChat(m)
}

// NearbyRequest is a PENDING request annotated with its distance from the caller.
type NearbyRequest struct {
	models.EmergencyRequest
	Distance  float64 `json:"distance"`
	Proximity string  `json:"proximity"`
}

// Nearby returns PENDING requests inside the radius box around (lat, lng).
func (s *EmergencyService) Nearby(lat, lng, radiusKm float64) ([]NearbyRequest, error) {
	q := proximity.Radius(lat, lng, radiusKm)
	pending, err := s.emergencies.PendingIn(q.Box())
	if err != nil {
		return nil, err
	}
	matches := proximity.Within(q, pending)
	out := make([]NearbyRequest, 0, len(matches))
	for _, m := range matches {
		out = append(out, NearbyRequest{
			EmergencyRequest: m.Item,
			Distance:         m.DistanceKm,
			Proximity:        proximity.Describe(m.DistanceKm, q.RadiusKm),
		})
	}
	return out, nil
}

func (s *EmergencyService) ListForUser(userID string) ([]models.EmergencyRequest, error) {
	return s.emergencies.ListByUser(userID)
}

func (s *EmergencyService) ListForProvider(providerID string) ([]models.EmergencyRequest, error) {
	return s.emergencies.ListByProvider(providerID)
}

func (s *EmergencyService) publish(ctx context.Context, key string, req *models.EmergencyRequest, providers int) {
	ev := events.EmergencyEvent{
		RequestID:  req.ID,
		UserID:     req.UserID,
		Status:     req.Status,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Providers:  providers,
		OccurredAt: s.now(),
	}
	if req.ProviderID != nil {
		ev.ProviderID = *req.ProviderID
	}
	if err := s.events.Publish(ctx, key, ev); err != nil {
		log.Printf("[emergency] publish %s for %s: %v", key, req.ID, err)
	}
}
