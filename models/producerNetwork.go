package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTransition = errors.New("invalid network status transition")

type ProducerNetwork struct {
	ID               uint          `gorm:"primary_key" json:"id"`
	ProducerID       uint          `gorm:"not null;uniqueIndex:idx_network_producer_center" json:"producer_id"`
	Producer         Producer      `json:"producer"`
	CenterID         uint          `gorm:"not null;uniqueIndex:idx_network_producer_center" json:"center_id"`
	Center           Center        `json:"center"`
	Status           NetworkStatus `gorm:"size:20;not null;index;default:pending" json:"status"`
	CanReceiveOrders bool          `gorm:"not null" json:"can_receive_orders"`
	CanSendMessages  bool          `gorm:"not null" json:"can_send_messages"`
	PriorityLevel    int           `gorm:"not null;default:1" json:"priority_level"`
	StatusReason     string        `gorm:"type:text" json:"status_reason"`
	JoinedAt         time.Time     `gorm:"autoCreateTime" json:"joined_at"`
	ActivatedAt      *time.Time    `json:"activated_at"`
	SuspendedAt      *time.Time    `json:"suspended_at"`
	TerminatedAt     *time.Time    `gorm:"index" json:"terminated_at"`
	LastActivity     *time.Time    `json:"last_activity"`
}

// Activate moves a pending or suspended network to active.
func (n *ProducerNetwork) Activate(now time.Time) error {
	if n.Status != NetworkStatusPending && n.Status != NetworkStatusSuspended {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, NetworkStatusActive)
	}
	n.Status = NetworkStatusActive
	n.CanReceiveOrders = true
	n.CanSendMessages = true
	n.ActivatedAt = &now
	n.SuspendedAt = nil
	n.StatusReason = ""
	n.LastActivity = &now
	return nil
}

func (n *ProducerNetwork) Suspend(now time.Time, reason string) error {
	if n.Status != NetworkStatusActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, NetworkStatusSuspended)
	}
	if strings.TrimSpace(reason) == "" {
		return errors.New("a reason is required to suspend a network")
	}
	n.Status = NetworkStatusSuspended
	n.CanReceiveOrders = false
	n.SuspendedAt = &now
	n.StatusReason = reason
	n.LastActivity = &now
	return nil
}

func (n *ProducerNetwork) Terminate(now time.Time, reason string) error {
	if n.Status == NetworkStatusTerminated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, NetworkStatusTerminated)
	}
	if strings.TrimSpace(reason) == "" {
		return errors.New("a reason is required to terminate a network")
	}
	n.Status = NetworkStatusTerminated
	n.CanReceiveOrders = false
	n.CanSendMessages = false
	n.TerminatedAt = &now
	n.StatusReason = reason
	n.LastActivity = &now
	return nil
}
