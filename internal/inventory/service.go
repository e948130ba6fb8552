package inventory

import (
	"context"
	"strings"

	"gamekeys-be/internal/logger"

	"go.uber.org/zap"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Import loads codes for a product. Blank lines and repeats inside the batch
// are dropped before they reach the store; codes the store already holds are
// counted as skipped.
func (s *Service) Import(ctx context.Context, productID string, codes []string) (*ImportResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrProductRequired
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Import"),
		zap.String("product_id", productID),
	)

	seen := make(map[string]struct{}, len(codes))
	clean := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		clean = append(clean, c)
	}
	if len(clean) == 0 {
		return nil, ErrNoCodes
	}

	imported, err := s.repo.ImportCodes(ctx, productID, clean)
	if err != nil {
		log.Error("import codes failed", zap.Error(err))
		return nil, err
	}

	log.Info("codes imported",
		zap.Int("submitted", len(codes)),
		zap.Int("imported", imported),
	)
	return &ImportResult{
		ProductID: productID,
		Submitted: len(codes),
		Imported:  imported,
		Skipped:   len(codes) - imported,
	}, nil
}

// Available reads the current unused count straight from the store.
func (s *Service) Available(ctx context.Context, productID string) (int, error) {
	if strings.TrimSpace(productID) == "" {
		return 0, ErrProductRequired
	}
	return s.repo.CountAvailable(ctx, productID)
}
