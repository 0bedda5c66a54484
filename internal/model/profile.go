package model

import (
	"time"
)

// Role classifies an account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Profile is a user's public-facing record.
type Profile struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SellerResponse is the seller detail view: profile plus catalog summary.
type SellerResponse struct {
	Profile      Profile `json:"profile"`
	ProductCount int     `json:"product_count"`
	AvgRating    float64 `json:"avg_rating"`
}
