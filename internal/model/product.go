// Package model defines data structures for the storefront platform.
package model

import (
	"time"
)

// Product is the normalized catalog entry. All store backends produce this
// shape at the data-access boundary; no other product representation exists
// past that point.
type Product struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Price           float64   `json:"price"`
	DiscountPercent int       `json:"discount_percent,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	Rating          float64   `json:"rating"`
	ReviewCount     int       `json:"review_count"`
	IsPrime         bool      `json:"is_prime"`
	SellerID        string    `json:"seller_id,omitempty"`
	Category        string    `json:"category,omitempty"`
	Stock           int       `json:"stock"`
	Sold            int       `json:"sold"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectiveUnitPrice returns the post-discount per-unit price used for totals.
func (p Product) EffectiveUnitPrice() float64 {
	if p.DiscountPercent > 0 {
		return p.Price * (1 - float64(p.DiscountPercent)/100)
	}
	return p.Price
}

// CreateProductRequest is the request to list a new product.
type CreateProductRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	DiscountPercent int     `json:"discount_percent,omitempty"`
	ImageURL        string  `json:"image_url,omitempty"`
	Category        string  `json:"category,omitempty"`
	Stock           int     `json:"stock"`
}

// ProductFilter narrows catalog queries.
type ProductFilter struct {
	Category string
	SellerID string
	Search   string
	Limit    int
	Offset   int
}

// ListProductsResponse is the response for listing products.
type ListProductsResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}

// SellerStats summarizes a seller's dashboard numbers.
type SellerStats struct {
	TotalProducts int     `json:"total_products"`
	TotalSold     int     `json:"total_sold"`
	TotalSales    float64 `json:"total_sales"`
	AvgRating     float64 `json:"avg_rating"`
}
