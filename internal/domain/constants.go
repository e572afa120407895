package domain

const (
	RoleUser            = "USER"
	RoleVendor          = "VENDOR"
	RoleServiceProvider = "SERVICE_PROVIDER"
	RoleAdmin           = "ADMIN"
)

// SelfRegisterRoles are the roles a user may pick at sign-up.
var SelfRegisterRoles = []string{RoleUser, RoleVendor, RoleServiceProvider}

const (
	EmergencyPending    = "PENDING"
	EmergencyInProgress = "INPROGRESS"
	EmergencyCompleted  = "COMPLETED"
)

const (
	OrderPending    = "PENDING"
	OrderProcessing = "PROCESSING"
	OrderShipped    = "SHIPPED"
	OrderDelivered  = "DELIVERED"
	OrderCancelled  = "CANCELLED"
)

var OrderStatuses = []string{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

const (
	ProviderKhalti = "khalti"
	ProviderStripe = "stripe"
)

const (
	NotifEmergencyRequest  = "EMERGENCY_REQUEST"
	NotifEmergencySent     = "EMERGENCY_SENT"
	NotifEmergencyAccepted = "EMERGENCY_ACCEPTED"
	NotifEmergencyDone     = "EMERGENCY_COMPLETED"
	NotifOrderPlaced       = "ORDER_PLACED"
	NotifOrderStatus       = "ORDER_STATUS"
	NotifPaymentConfirmed  = "PAYMENT_CONFIRMED"
	NotifGeneral           = "GENERAL"
)

// LowStockThreshold is the default for vendor low-stock listings.
const LowStockThreshold = 10

func ValidRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
