package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/product"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ValidateRequest struct {
	Code       string
	Amount     decimal.Decimal
	UserID     *uint
	ProductIDs []string
}

type Service struct {
	repo    Repository
	catalog product.Repository
	now     func() time.Time
}

func NewService(repo Repository, catalog product.Repository) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

// Validate loads the coupon and the caller's usage, resolves targeting
// attributes from the catalog and runs Calculate.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ValidateCoupon"),
		zap.String("code", req.Code),
	)

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrInvalid
	}

	c, err := s.repo.GetCouponByCode(ctx, code)
	if errors.Is(err, ErrCouponNotFound) {
		return nil, ErrInvalid
	}
	if err != nil {
		log.Error("load coupon failed", zap.Error(err))
		return nil, err
	}

	in := Input{Amount: req.Amount}

	if req.UserID != nil {
		used, err := s.repo.HasUserUsedCoupon(ctx, c.ID, *req.UserID)
		if err != nil {
			log.Error("load coupon usage failed", zap.Error(err))
			return nil, err
		}
		in.UserAlreadyUsed = used
	}

	if c.Target != "" && c.Target != TargetAll && len(req.ProductIDs) > 0 {
		products, err := s.catalog.GetProductsByIDs(ctx, req.ProductIDs)
		if err != nil {
			log.Error("catalog lookup failed", zap.Error(err))
			return nil, err
		}
		for _, id := range req.ProductIDs {
			p := products[id]
			in.Lines = append(in.Lines, Line{ProductID: id, Category: p.Category, Platform: p.Platform})
		}
	} else {
		for _, id := range req.ProductIDs {
			in.Lines = append(in.Lines, Line{ProductID: id})
		}
	}

	res, err := Calculate(c, in, s.now())
	if err != nil {
		log.Info("coupon rejected", zap.Error(err))
		return nil, err
	}
	return res, nil
}
