package models

import "time"

// Notification is one delivered message in a user's feed.
type Notification struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SenderID    *uint     `gorm:"index" json:"sender_id"`
	RecipientID uint      `gorm:"not null;index:idx_notification_recipient_kind" json:"recipient_id"`
	Kind        string    `gorm:"size:50;not null;index:idx_notification_recipient_kind" json:"kind"`
	Category    string    `gorm:"size:20;not null" json:"category"`
	Severity    string    `gorm:"size:10;not null" json:"severity"`
	Verb        string    `gorm:"size:255;not null" json:"verb"`
	Description string    `gorm:"type:text" json:"description"`
	Link        string    `gorm:"size:255" json:"link"`
	Unread      bool      `gorm:"not null;index" json:"unread"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}
