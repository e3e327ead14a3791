package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository) *FollowService {
	return &FollowService{followRepo: followRepo, userRepo: userRepo}
}

// Follow subscribes the actor to the named author. Following yourself and
// following someone twice are both silent no-ops; only the author having to
// exist can fail the operation.
func (s *FollowService) Follow(ctx context.Context, actorID uint, username string) (*models.User, error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if author.ID == actorID {
		return author, nil
	}

	created, err := s.followRepo.Create(ctx, actorID, author.ID)
	if err != nil {
		return nil, err
	}
	if created {
		observability.FollowEdgesCreated.Inc()
	}
	return author, nil
}

// Unfollow removes the actor's subscription to the named author. Removing an
// absent edge is a no-op.
func (s *FollowService) Unfollow(ctx context.Context, actorID uint, username string) (*models.User, error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.followRepo.Delete(ctx, actorID, author.ID); err != nil {
		return nil, err
	}
	return author, nil
}

// IsFollowing reports whether the actor follows the author.
func (s *FollowService) IsFollowing(ctx context.Context, actorID, authorID uint) (bool, error) {
	return s.followRepo.Exists(ctx, actorID, authorID)
}
