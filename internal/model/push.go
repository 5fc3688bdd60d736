package model

import "time"

// Notification type constants
const (
	NotifTypeSlotReminder = "slot_reminder"
	NotifTypeBroadcast    = "broadcast"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// PushToken maps a device's push-registration token to a user.
type PushToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  Platform  `json:"platform"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WebPushSubscription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduledNotification is a daily repeating reminder keyed by Identifier.
type ScheduledNotification struct {
	UserID     string    `json:"user_id"`
	Identifier string    `json:"identifier"`
	SlotID     string    `json:"slot_id"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	CreatedAt  time.Time `json:"created_at"`
}
