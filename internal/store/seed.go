package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopstream/storefront-platform/internal/model"
)

// Seed populates an empty store with the demo catalog and seller profiles so
// the storefront renders without an ingestion step.
func Seed(ctx context.Context, s Store) error {
	now := time.Now()

	sellers := []model.Profile{
		{ID: "seller-techhaven", FullName: "Ravi Menon", CompanyName: "TechHaven", Role: model.RoleSeller, CreatedAt: now, UpdatedAt: now},
		{ID: "seller-homeworks", FullName: "Dana Whitfield", CompanyName: "HomeWorks Supply", Role: model.RoleSeller, CreatedAt: now, UpdatedAt: now},
	}
	for i := range sellers {
		if err := s.UpsertProfile(ctx, &sellers[i]); err != nil {
			return fmt.Errorf("failed to seed profile %s: %w", sellers[i].ID, err)
		}
	}

	products := []model.Product{
		{
			Title:           "Apple AirPods Pro (2nd Generation) Wireless Earbuds",
			Price:           249.99,
			DiscountPercent: 20,
			Rating:          4.7,
			ReviewCount:     23482,
			IsPrime:         true,
			SellerID:        "seller-techhaven",
			Category:        "electronics",
			Stock:           120,
		},
		{
			Title:           "Samsung Galaxy S23 Ultra, Factory Unlocked, 256GB",
			Price:           1199.99,
			DiscountPercent: 15,
			Rating:          4.5,
			ReviewCount:     1254,
			IsPrime:         true,
			SellerID:        "seller-techhaven",
			Category:        "electronics",
			Stock:           45,
		},
		{
			Title:       "Kindle Paperwhite (8 GB) with 6.8\" display and adjustable warm light",
			Price:       139.99,
			Rating:      4.8,
			ReviewCount: 32765,
			IsPrime:     true,
			SellerID:    "seller-techhaven",
			Category:    "electronics",
			Stock:       200,
		},
		{
			Title:           "Ninja AF101 Air Fryer, 4 Quart",
			Price:           99.99,
			DiscountPercent: 32,
			Rating:          4.6,
			ReviewCount:     43590,
			IsPrime:         true,
			SellerID:        "seller-homeworks",
			Category:        "kitchen",
			Stock:           80,
		},
		{
			Title:       "Apple MacBook Air Laptop M2 Chip, 8GB RAM, 256GB SSD",
			Price:       1099.99,
			Rating:      4.8,
			ReviewCount: 2478,
			IsPrime:     true,
			SellerID:    "seller-techhaven",
			Category:    "computers",
			Stock:       30,
		},
		{
			Title:       "LEGO Star Wars: The Mandalorian The Child Building Kit",
			Price:       79.99,
			Rating:      4.9,
			ReviewCount: 19876,
			IsPrime:     true,
			SellerID:    "seller-homeworks",
			Category:    "toys",
			Stock:       150,
		},
		{
			Title:           "Instant Pot Duo 7-in-1 Electric Pressure Cooker, 6 Quart",
			Price:           89.95,
			DiscountPercent: 25,
			Rating:          4.7,
			ReviewCount:     151849,
			IsPrime:         true,
			SellerID:        "seller-homeworks",
			Category:        "kitchen",
			Stock:           95,
		},
		{
			Title:       "Sony WH-1000XM5 Wireless Noise Canceling Headphones",
			Price:       399.99,
			Rating:      4.6,
			ReviewCount: 8421,
			IsPrime:     true,
			SellerID:    "seller-techhaven",
			Category:    "electronics",
			Stock:       60,
		},
	}
	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
		if err := s.InsertProduct(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", products[i].Title, err)
		}
	}

	return nil
}
