package ai

import (
	"context"

	"github.com/printsafeai/printsafe-api/internal/domain/ai"
)

type Service struct {
	reviewer ai.Reviewer
}

func NewService(reviewer ai.Reviewer) *Service {
	return &Service{reviewer: reviewer}
}

func (s *Service) Review(ctx context.Context, fileName string, imageData []byte) (string, error) {
	if s == nil || s.reviewer == nil {
		return "", ai.ErrDisabled
	}
	return s.reviewer.Review(ctx, fileName, imageData)
}
