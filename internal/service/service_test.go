package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roadassist/config"
	"roadassist/internal/database/dbtest"
	"roadassist/internal/domain"
	"roadassist/internal/events"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/pkg/payment"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type recordingLive struct {
	mu         sync.Mutex
	dispatched []string
	assigned   []string
	chats      int
}

func (l *recordingLive) DispatchEmergency(req *models.EmergencyRequest, _ models.Position) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dispatched = append(l.dispatched, req.ID)
	return 0
}

func (l *recordingLive) ProviderAssigned(req *models.EmergencyRequest, providerID string, _ *models.Position) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.assigned = append(l.assigned, providerID)
	return 0
}

func (l *recordingLive) DeliverChat(*models.ChatMessage) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chats++
	return 0
}

type ServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	seq    int
	users  *repository.UserRepository
	chats  *repository.ChatRepository
	notifs *repository.NotificationRepository
	events *events.Recorder
	live   *recordingLive
	svc    *EmergencyService
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	db, err := dbtest.New()
	s.Require().NoError(err)
	s.db = db
	s.users = repository.NewUserRepository(db)
	s.chats = repository.NewChatRepository(db)
	s.notifs = repository.NewNotificationRepository(db)
	s.events = &events.Recorder{}
	s.live = &recordingLive{}
	notify := NewNotificationService(s.notifs, s.users, nil)
	s.svc = NewEmergencyService(
		repository.NewEmergencyRepository(db),
		s.users,
		repository.NewVehicleRepository(db),
		s.chats,
		notify,
		s.events,
		0,
	)
	s.svc.UseLiveChannel(s.live)
}

func (s *ServiceTestSuite) user(role string, lat, lng float64, online bool) *models.User {
	s.seq++
	now := time.Now()
	u := &models.User{
		Name:              fmt.Sprintf("user %d", s.seq),
		Email:             fmt.Sprintf("u%d@example.com", s.seq),
		Phone:             fmt.Sprintf("98100000%02d", s.seq),
		Role:              role,
		Latitude:          lat,
		Longitude:         lng,
		LocationUpdatedAt: &now,
		IsOnline:          online,
	}
	s.Require().NoError(s.users.Create(u))
	return u
}

func (s *ServiceTestSuite) vehicle(owner string) *models.Vehicle {
	s.seq++
	v := &models.Vehicle{UserID: owner, Brand: "Toyota", Model: "Corolla", Year: 2018, VIN: fmt.Sprintf("VIN%04d", s.seq)}
	s.Require().NoError(repository.NewVehicleRepository(s.db).Create(v))
	return v
}

func (s *ServiceTestSuite) pending() (*models.User, *models.EmergencyRequest) {
	requester := s.user(domain.RoleUser, 27.705, 85.325, true)
	v := s.vehicle(requester.ID)
	req, _, err := s.svc.Request(context.Background(), requester.ID, EmergencyInput{
		VehicleID: v.ID, AssistanceType: "flat tyre", Latitude: 27.705, Longitude: 85.325,
	})
	s.Require().NoError(err)
	return requester, req
}

func (s *ServiceTestSuite) TestRequest_ContactsProvidersInBox() {
	requester := s.user(domain.RoleUser, 27.705, 85.325, true)
	v := s.vehicle(requester.ID)
	near := s.user(domain.RoleServiceProvider, 27.70, 85.32, true)
	nearOffline := s.user(domain.RoleServiceProvider, 27.75, 85.36, false)
	far := s.user(domain.RoleServiceProvider, 28.90, 85.32, true)

	req, contacted, err := s.svc.Request(context.Background(), requester.ID, EmergencyInput{
		VehicleID:      v.ID,
		AssistanceType: "towing",
		Description:    "engine smoke",
		Latitude:       27.705,
		Longitude:      85.325,
	})
	s.Require().NoError(err)
	s.Equal(2, contacted)
	s.Equal(domain.EmergencyPending, req.Status)
	s.Equal("27.705,85.325", req.Location)

	for _, p := range []*models.User{near, nearOffline} {
		history, err := s.chats.History(requester.ID, p.ID)
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Contains(history[0].Message+history[1].Message, "2018 Toyota Corolla")
		n, err := s.notifs.UnreadCount(p.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), n)
	}
	history, err := s.chats.History(requester.ID, far.ID)
	s.Require().NoError(err)
	s.Empty(history)

	list, err := s.notifs.ListByUserID(requester.ID, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Contains(list[0].Message, "sent to 2 nearby service providers")

	s.Equal([]string{req.ID}, s.live.dispatched)
	s.Equal(4, s.live.chats)
	s.Equal([]string{events.EmergencyCreated}, s.events.Keys())
}

func (s *ServiceTestSuite) TestRequest_VehicleMustBelongToRequester() {
	requester := s.user(domain.RoleUser, 27.7, 85.3, true)
	other := s.user(domain.RoleUser, 27.7, 85.3, true)
	v := s.vehicle(other.ID)

	_, _, err := s.svc.Request(context.Background(), requester.ID, EmergencyInput{
		VehicleID: v.ID, AssistanceType: "towing", Latitude: 27.7, Longitude: 85.3,
	})
	s.ErrorIs(err, ErrVehicleNotFound)
}

func (s *ServiceTestSuite) TestRequest_RejectsBadPosition() {
	requester := s.user(domain.RoleUser, 27.7, 85.3, true)
	_, _, err := s.svc.Request(context.Background(), requester.ID, EmergencyInput{
		VehicleID: "x", AssistanceType: "towing", Latitude: 91, Longitude: 85.3,
	})
	s.ErrorIs(err, ErrInvalidPosition)
}

func (s *ServiceTestSuite) TestAccept_ConcurrentProvidersOneWinner() {
	requester, req := s.pending()
	providers := make([]*models.User, 8)
	for i := range providers {
		providers[i] = s.user(domain.RoleServiceProvider, 27.7, 85.32, true)
	}

	var wins, lost int32
	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.svc.Accept(context.Background(), req.ID, id, nil)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrAlreadyAccepted):
				atomic.AddInt32(&lost, 1)
			}
		}(p.ID)
	}
	wg.Wait()

	s.Equal(int32(1), wins)
	s.Equal(int32(len(providers)-1), lost)
	s.Len(s.live.assigned, 1)

	got, err := s.svc.Get(req.ID)
	s.Require().NoError(err)
	s.Equal(domain.EmergencyInProgress, got.Status)
	s.Require().NotNil(got.ProviderID)
	s.Equal(s.live.assigned[0], *got.ProviderID)

	list, err := s.notifs.ListByUserID(requester.ID, 0, 0)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *ServiceTestSuite) TestAccept_RequiresProviderRole() {
	_, req := s.pending()
	plain := s.user(domain.RoleUser, 27.7, 85.3, true)

	_, err := s.svc.Accept(context.Background(), req.ID, plain.ID, nil)
	s.ErrorIs(err, ErrNotProvider)
}

func (s *ServiceTestSuite) TestAccept_UnknownRequest() {
	p := s.user(domain.RoleServiceProvider, 27.7, 85.3, true)
	_, err := s.svc.Accept(context.Background(), "missing", p.ID, nil)
	s.ErrorIs(err, ErrEmergencyNotFound)
}

func (s *ServiceTestSuite) TestComplete_Lifecycle() {
	_, req := s.pending()
	assigned := s.user(domain.RoleServiceProvider, 27.7, 85.32, true)
	other := s.user(domain.RoleServiceProvider, 27.7, 85.32, true)
	ctx := context.Background()

	_, err := s.svc.Complete(ctx, req.ID, assigned.ID)
	s.ErrorIs(err, ErrNotAccepted)

	_, err = s.svc.Accept(ctx, req.ID, assigned.ID, &models.Position{Latitude: 27.7, Longitude: 85.32})
	s.Require().NoError(err)

	_, err = s.svc.Complete(ctx, req.ID, other.ID)
	s.ErrorIs(err, ErrNotAssignedProvider)

	done, err := s.svc.Complete(ctx, req.ID, assigned.ID)
	s.Require().NoError(err)
	s.Equal(domain.EmergencyCompleted, done.Status)
	s.NotNil(done.CompletedAt)

	_, err = s.svc.Complete(ctx, req.ID, assigned.ID)
	s.ErrorIs(err, ErrAlreadyCompleted)

	s.Equal([]string{events.EmergencyCreated, events.EmergencyAccepted, events.EmergencyCompleted}, s.events.Keys())

	mine, err := s.svc.ListForProvider(assigned.ID)
	s.Require().NoError(err)
	s.Len(mine, 1)
}

func (s *ServiceTestSuite) TestNearby_PendingOnlyWithDistance() {
	_, req := s.pending()
	_, taken := s.pending()
	p := s.user(domain.RoleServiceProvider, 27.7, 85.32, true)
	_, err := s.svc.Accept(context.Background(), taken.ID, p.ID, nil)
	s.Require().NoError(err)

	got, err := s.svc.Nearby(27.70, 85.32, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(req.ID, got[0].ID)
	s.InDelta(0.74, got[0].Distance, 0.05)
	s.Equal("Very Close", got[0].Proximity)

	none, err := s.svc.Nearby(28.9, 85.32, 10)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *ServiceTestSuite) authService() *AuthService {
	cfg := &config.Config{JWT: config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "roadassist-test",
	}}
	return NewAuthService(cfg, s.users)
}

func (s *ServiceTestSuite) TestRegisterAndLogin() {
	auth := s.authService()
	u, tokens, err := auth.Register(RegisterInput{
		Name: "Asha", Email: "Asha@Example.com", Phone: "9800000001", Password: "secret123",
	})
	s.Require().NoError(err)
	s.Equal(domain.RoleUser, u.Role)
	s.Equal("asha@example.com", u.Email)
	s.NotEmpty(tokens.Access)
	s.NotEmpty(tokens.Refresh)

	_, _, err = auth.Register(RegisterInput{Name: "Dup", Email: "asha@example.com", Phone: "9800000002", Password: "x"})
	s.ErrorIs(err, ErrEmailExists)
	_, _, err = auth.Register(RegisterInput{Name: "Dup", Email: "other@example.com", Phone: "9800000001", Password: "x"})
	s.ErrorIs(err, ErrPhoneExists)

	_, _, err = auth.Login("asha@example.com", "wrong")
	s.ErrorIs(err, ErrInvalidCreds)
	got, _, err := auth.Login("ASHA@example.com", "secret123")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	refreshed, err := auth.RefreshToken(tokens.Refresh)
	s.Require().NoError(err)
	s.NotEmpty(refreshed.Access)
}

func (s *ServiceTestSuite) TestRegister_RoleRules() {
	auth := s.authService()
	_, _, err := auth.Register(RegisterInput{Name: "A", Email: "a@x.com", Phone: "1", Password: "p", Role: domain.RoleAdmin})
	s.ErrorIs(err, ErrInvalidRole)
	_, _, err = auth.Register(RegisterInput{Name: "V", Email: "v@x.com", Phone: "2", Password: "p", Role: domain.RoleVendor})
	s.ErrorIs(err, ErrCompanyNameRequired)
	v, _, err := auth.Register(RegisterInput{Name: "V", Email: "v@x.com", Phone: "2", Password: "p", Role: domain.RoleVendor, CompanyName: "Parts Co"})
	s.Require().NoError(err)
	s.Equal("Parts Co", v.CompanyName)
}

func (s *ServiceTestSuite) TestLogin_BannedUser() {
	auth := s.authService()
	u, _, err := auth.Register(RegisterInput{Name: "B", Email: "b@x.com", Phone: "3", Password: "p"})
	s.Require().NoError(err)
	s.Require().NoError(repository.NewAdminRepository(s.db).SetBanned(u.ID, true, "spam"))

	_, _, err = auth.Login("b@x.com", "p")
	s.ErrorIs(err, ErrBanned)
}

func (s *ServiceTestSuite) TestLoginWithGoogle_LinksExistingAccount() {
	auth := s.authService()
	u, _, err := auth.Register(RegisterInput{Name: "G", Email: "g@x.com", Phone: "4", Password: "p"})
	s.Require().NoError(err)

	linked, _, isNew, err := auth.LoginWithGoogle("gid-1", "g@x.com", "G", "https://img/avatar.png")
	s.Require().NoError(err)
	s.False(isNew)
	s.Equal(u.ID, linked.ID)

	fresh, _, isNew, err := auth.LoginWithGoogle("gid-2", "new@x.com", "New", "")
	s.Require().NoError(err)
	s.True(isNew)
	s.Equal("google:gid-2", fresh.Phone)
}

func (s *ServiceTestSuite) product(vendorID string, price float64, stock int) *models.Product {
	p := &models.Product{VendorID: vendorID, Name: "Brake pads", Category: "brakes", Price: price, Stock: stock}
	s.Require().NoError(repository.NewProductRepository(s.db).Create(p))
	return p
}

func (s *ServiceTestSuite) orderService() *OrderService {
	return NewOrderService(repository.NewOrderRepository(s.db), repository.NewProductRepository(s.db), NewNotificationService(s.notifs, s.users, nil))
}

func (s *ServiceTestSuite) TestOrder_PlaceAndVendorUpdate() {
	vendor := s.user(domain.RoleVendor, 0, 0, false)
	buyer := s.user(domain.RoleUser, 0, 0, false)
	p := s.product(vendor.ID, 12.5, 3)
	svc := s.orderService()

	o, err := svc.Place(buyer.ID, p.ID, 2)
	s.Require().NoError(err)
	s.Equal(25.0, o.TotalPrice)
	s.Equal(domain.OrderPending, o.Status)

	_, err = svc.Place(buyer.ID, p.ID, 2)
	s.ErrorIs(err, repository.ErrInsufficientStock)
	_, err = svc.Place(buyer.ID, p.ID, 0)
	s.ErrorIs(err, ErrInvalidQuantity)
	_, err = svc.Place(buyer.ID, "missing", 1)
	s.ErrorIs(err, ErrProductNotFound)

	n, err := s.notifs.UnreadCount(vendor.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = svc.UpdateStatus(vendor.ID, o.ID, "LOST")
	s.ErrorIs(err, ErrInvalidStatus)
	other := s.user(domain.RoleVendor, 0, 0, false)
	_, err = svc.UpdateStatus(other.ID, o.ID, domain.OrderShipped)
	s.ErrorIs(err, ErrOrderNotFound)
	updated, err := svc.UpdateStatus(vendor.ID, o.ID, domain.OrderShipped)
	s.Require().NoError(err)
	s.Equal(domain.OrderShipped, updated.Status)

	_, err = svc.Get(o.ID, other.ID)
	s.ErrorIs(err, ErrOrderNotFound)
}

func (s *ServiceTestSuite) TestPayment_StubLifecycle() {
	vendor := s.user(domain.RoleVendor, 0, 0, false)
	buyer := s.user(domain.RoleUser, 0, 0, false)
	p := s.product(vendor.ID, 100, 5)
	o, err := s.orderService().Place(buyer.ID, p.ID, 1)
	s.Require().NoError(err)

	orders := repository.NewOrderRepository(s.db)
	svc := NewPaymentService(repository.NewPaymentRepository(s.db), orders, s.users,
		NewNotificationService(s.notifs, s.users, nil), &payment.StubProvider{ProviderName: domain.ProviderKhalti})

	_, _, err = svc.Initiate(context.Background(), buyer.ID, domain.ProviderStripe, PaymentInput{AmountMinor: 100})
	s.ErrorIs(err, ErrUnknownProvider)

	pay, resp, err := svc.Initiate(context.Background(), buyer.ID, domain.ProviderKhalti, PaymentInput{OrderID: o.ID})
	s.Require().NoError(err)
	s.Equal(int64(10000), pay.Amount)
	s.Equal(resp.Reference, pay.ProviderRef)
	s.Equal(domain.PaymentPending, pay.Status)

	_, err = svc.Verify(context.Background(), vendor.ID, domain.ProviderKhalti, resp.Reference)
	s.ErrorIs(err, ErrPaymentNotFound)

	done, err := svc.Verify(context.Background(), buyer.ID, domain.ProviderKhalti, resp.Reference)
	s.Require().NoError(err)
	s.Equal(domain.PaymentCompleted, done.Status)

	again, err := svc.Verify(context.Background(), buyer.ID, domain.ProviderKhalti, resp.Reference)
	s.Require().NoError(err)
	s.Equal(domain.PaymentCompleted, again.Status)

	got, err := orders.GetByID(o.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderProcessing, got.Status)

	list, err := s.notifs.ListByUserID(buyer.ID, 0, 0)
	s.Require().NoError(err)
	paid := 0
	for _, n := range list {
		if n.Type == domain.NotifPaymentConfirmed {
			paid++
		}
	}
	s.Equal(1, paid)
}
