package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/apperror"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
)

const signedURLExpiry = time.Hour

// URLSigner issues temporary download links.
type URLSigner interface {
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// LibraryService lists a user's processed videos.
type LibraryService struct {
	store  repository.ProcessedStore
	signer URLSigner
}

// NewLibraryService takes an optional signer; with one, file URLs in the
// listing are replaced by short-lived signed links.
func NewLibraryService(store repository.ProcessedStore, signer URLSigner) *LibraryService {
	return &LibraryService{store: store, signer: signer}
}

func (s *LibraryService) ListProcessed(ctx context.Context, userID string, limit int) (*model.ProcessedListResponse, error) {
	videos, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.Internal("Failed to list processed videos", err)
	}
	if videos == nil {
		videos = []model.ProcessedVideo{}
	}

	if s.signer != nil {
		for i := range videos {
			url, err := s.signer.GetSignedURL(ctx, videos[i].StoragePath, signedURLExpiry)
			if err != nil {
				log.Warn().Err(err).Str("id", videos[i].ID).Msg("Failed to sign download URL")
				continue
			}
			videos[i].FileURL = url
		}
	}
	return &model.ProcessedListResponse{Videos: videos}, nil
}
