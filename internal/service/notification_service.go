package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/internal/repository"
)

// Pusher delivers a device push. *FCMService satisfies it.
type Pusher interface {
	SendToUser(ctx context.Context, fcmToken, notifType, title, body string, data map[string]interface{}) error
}

type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	push     Pusher
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, push Pusher) *NotificationService {
	s := &NotificationService{repo: repo, userRepo: userRepo}
	// A nil *FCMService must not become a non-nil interface.
	if f, ok := push.(*FCMService); !ok || f != nil {
		s.push = push
	}
	return s
}

// Notify stores the notification and then attempts a push; push errors are only logged.
func (s *NotificationService) Notify(userID, notifType, message string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(&models.Notification{
		UserID:  userID,
		Type:    notifType,
		Message: message,
		Data:    dataJSON,
	})
	if err != nil {
		return err
	}
	s.sendPush(userID, notifType, message, data)
	return nil
}

func (s *NotificationService) sendPush(userID, notifType, message string, data map[string]interface{}) {
	if s.push == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u.FCMToken == "" {
		return
	}
	if err := s.push.SendToUser(context.Background(), u.FCMToken, notifType, titleFor(notifType), message, data); err != nil {
		log.Printf("[notify] push to %s failed: %v", userID, err)
	}
}

func titleFor(notifType string) string {
	switch notifType {
	case domain.NotifEmergencyRequest:
		return "Emergency assistance needed"
	case domain.NotifEmergencySent:
		return "Request sent"
	case domain.NotifEmergencyAccepted:
		return "Provider on the way"
	case domain.NotifEmergencyDone:
		return "Assistance completed"
	case domain.NotifOrderPlaced:
		return "New order"
	case domain.NotifOrderStatus:
		return "Order update"
	case domain.NotifPaymentConfirmed:
		return "Payment confirmed"
	default:
		return "Notification"
	}
}

func (s *NotificationService) NotifyOrderPlaced(vendorID string, order *models.Order, productName string) error {
	return s.Notify(vendorID, domain.NotifOrderPlaced,
		fmt.Sprintf("New order for %d x %s.", order.Quantity, productName),
		map[string]interface{}{"orderId": order.ID})
}

func (s *NotificationService) NotifyOrderStatus(userID string, order *models.Order) error {
	return s.Notify(userID, domain.NotifOrderStatus,
		fmt.Sprintf("Your order is now %s.", order.Status),
		map[string]interface{}{"orderId": order.ID, "status": order.Status})
}

func (s *NotificationService) NotifyPaymentConfirmed(userID string, amount int64, reference string) error {
	return s.Notify(userID, domain.NotifPaymentConfirmed, "Your payment was successful.",
		map[string]interface{}{"amount": amount, "reference": reference})
}
