package store

import (
	"context"
	"fmt"

	"gamekeys-be/internal/coupon"
	"gamekeys-be/internal/product"
	"gamekeys-be/internal/store/memory"

	"github.com/shopspring/decimal"
)

var demoProducts = []product.Product{
	{ID: "steam-wallet-100k", Name: "Steam Wallet IDR 100.000", Price: 100000, Category: "wallet", Platform: "steam", Active: true},
	{ID: "valorant-475vp", Name: "Valorant 475 VP", Price: 55000, Category: "game-credit", Platform: "valorant", Active: true},
	{ID: "lol-650rp", Name: "League of Legends 650 RP", Price: 75000, Category: "game-credit", Platform: "lol", Active: true},
}

// SeedDemo loads a small catalog with five codes per product and a
// WELCOME20 coupon.
func SeedDemo(ctx context.Context, s *memory.Store, currency string) error {
	if currency == "" {
		currency = "IDR"
	}
	for _, p := range demoProducts {
		p.Currency = currency
		s.SaveProduct(p)

		codes := make([]string, 0, 5)
		for i := 1; i <= 5; i++ {
			codes = append(codes, fmt.Sprintf("DEMO-%s-%04d", p.ID, i))
		}
		if _, err := s.ImportCodes(ctx, p.ID, codes); err != nil {
			return err
		}
	}

	s.SaveCoupon(coupon.Coupon{
		Code:           "WELCOME20",
		Type:           coupon.TypePercentage,
		Value:          decimal.NewFromInt(20),
		MinOrderAmount: decimal.NewFromInt(100000),
		Target:         coupon.TargetAll,
		Active:         true,
	})
	return nil
}
