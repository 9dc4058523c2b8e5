package domain

import "time"

type AddressType string

const (
	AddressTypeBilling  AddressType = "BILLING"
	AddressTypeDispatch AddressType = "DISPATCH"
)

func (t AddressType) Valid() bool {
	return t == AddressTypeBilling || t == AddressTypeDispatch
}

type Address struct {
	ID           int64       `json:"id"`
	UserID       string      `json:"user_id"`
	ContactName  string      `json:"contact_name"`
	Phone        string      `json:"phone"`
	Email        string      `json:"email,omitempty"`
	AddressLine1 string      `json:"address_line1"`
	AddressLine2 string      `json:"address_line2,omitempty"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	Zip          string      `json:"zip"`
	Type         AddressType `json:"type"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
