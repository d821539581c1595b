package models

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCenter   UserRole = "center"
	UserRoleProducer UserRole = "producer"
	UserRoleNone     UserRole = ""
)

type OrderStatus string

const (
	OrderStatusReceived     OrderStatus = "received"
	OrderStatusDesigning    OrderStatus = "designing"
	OrderStatusProduction   OrderStatus = "production"
	OrderStatusQualityCheck OrderStatus = "quality_check"
	OrderStatusPackaging    OrderStatus = "packaging"
	OrderStatusShipping     OrderStatus = "shipping"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

// PipelineStages is the production pipeline in order, excluding the terminal states.
var PipelineStages = []OrderStatus{
	OrderStatusReceived,
	OrderStatusDesigning,
	OrderStatusProduction,
	OrderStatusQualityCheck,
	OrderStatusPackaging,
	OrderStatusShipping,
}

// ActiveOrderStatuses are the statuses the weekly report counts as active work.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusDesigning,
	OrderStatusProduction,
}

// StatusActiveOrderStatuses are the statuses the system status counts as
// active; work waiting in quality check is still in the shop.
var StatusActiveOrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusDesigning,
	OrderStatusProduction,
	OrderStatusQualityCheck,
}

var TerminalOrderStatuses = []OrderStatus{
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusReceived, OrderStatusDesigning, OrderStatusProduction, OrderStatusQualityCheck,
		OrderStatusPackaging, OrderStatusShipping, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type OrderPriority string

const (
	OrderPriorityLow    OrderPriority = "low"
	OrderPriorityNormal OrderPriority = "normal"
	OrderPriorityHigh   OrderPriority = "high"
	OrderPriorityUrgent OrderPriority = "urgent"
)

func (p OrderPriority) IsValid() bool {
	switch p {
	case OrderPriorityLow, OrderPriorityNormal, OrderPriorityHigh, OrderPriorityUrgent:
		return true
	}
	return false
}

type NetworkStatus string

const (
	NetworkStatusPending    NetworkStatus = "pending"
	NetworkStatusActive     NetworkStatus = "active"
	NetworkStatusSuspended  NetworkStatus = "suspended"
	NetworkStatusTerminated NetworkStatus = "terminated"
)

func (s NetworkStatus) IsValid() bool {
	switch s {
	case NetworkStatusPending, NetworkStatusActive, NetworkStatusSuspended, NetworkStatusTerminated:
		return true
	}
	return false
}

type RevisionStatus string

const (
	RevisionStatusPending    RevisionStatus = "pending"
	RevisionStatusAccepted   RevisionStatus = "accepted"
	RevisionStatusRejected   RevisionStatus = "rejected"
	RevisionStatusInProgress RevisionStatus = "in_progress"
	RevisionStatusCompleted  RevisionStatus = "completed"
)

type MoldStatus string

const (
	MoldStatusWaiting    MoldStatus = "waiting"
	MoldStatusProcessing MoldStatus = "processing"
	MoldStatusCompleted  MoldStatus = "completed"
	MoldStatusRevision   MoldStatus = "revision"
	MoldStatusRejected   MoldStatus = "rejected"
	MoldStatusShipped    MoldStatus = "shipped"
	MoldStatusDelivered  MoldStatus = "delivered"
)
