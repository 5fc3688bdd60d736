package model

import "time"

type MerchantStatus string

const (
	MerchantPending   MerchantStatus = "pending"
	MerchantApproved  MerchantStatus = "approved"
	MerchantSuspended MerchantStatus = "suspended"
)

type Merchant struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	BusinessName string         `json:"business_name"`
	ContactEmail string         `json:"contact_email"`
	Status       MerchantStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
