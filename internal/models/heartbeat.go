package models

import "time"

// DeviceHeartbeat is the sync health a handset publishes after each
// reconciliation pass.
type DeviceHeartbeat struct {
	DeviceID   string    `json:"device_id"`
	OwnerID    string    `json:"owner_id"`
	Status     string    `json:"status"`
	Unsynced   int       `json:"unsynced"`
	Pending    int       `json:"pending"`
	LastSyncAt time.Time `json:"last_sync_at"`
	LastResult string    `json:"last_result"`
}

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)
