package models

import "time"

// User is an account that owns emergency contacts and triggers incidents.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact is one emergency contact in a user's circle. The reachable
// fields (phone, email, device token) feed the per-channel recipient
// lists when an incident fans out.
type Contact struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Relation    string    `json:"relation"`
	Address     string    `json:"address"`
	DeviceToken string    `json:"device_token"`
	CreatedAt   time.Time `json:"created_at"`
}
