// Package service holds the application core: orchestration between form
// input, repositories, and the rules that handlers translate to HTTP.
package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/pagination"
	"quill/internal/repository"
)

// FeedPage is one page of a feed plus the pagination frame it was cut from.
type FeedPage struct {
	Posts []*models.Post  `json:"posts"`
	Page  pagination.Page `json:"page"`
}

// GroupFeedResult pairs a group with one page of its posts.
type GroupFeedResult struct {
	Group *models.Group `json:"group"`
	Feed  FeedPage      `json:"feed"`
}

// ProfileResult is an author's profile header plus one page of their posts.
// Following is only meaningful for authenticated viewers and is false for the
// author's own profile.
type ProfileResult struct {
	Author     *models.User `json:"author"`
	PostsTotal int64        `json:"posts_total"`
	Followers  int64        `json:"followers"`
	Following  bool         `json:"following"`
	Feed       FeedPage     `json:"feed"`
}

type FeedService struct {
	postRepo   repository.PostRepository
	groupRepo  repository.GroupRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
}

func NewFeedService(
	postRepo repository.PostRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
) *FeedService {
	return &FeedService{
		postRepo:   postRepo,
		groupRepo:  groupRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
	}
}

// GlobalFeed returns one page of all posts, newest first.
func (s *FeedService) GlobalFeed(ctx context.Context, page int) (*FeedPage, error) {
	total, err := s.postRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	p := pagination.Resolve(total, pagination.PageSize, page)
	posts, err := s.postRepo.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Posts: posts, Page: p}, nil
}

// GroupFeed returns a group resolved by slug and one page of its posts.
func (s *FeedService) GroupFeed(ctx context.Context, slug string, page int) (*GroupFeedResult, error) {
	group, err := s.groupRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	total, err := s.postRepo.CountByGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	p := pagination.Resolve(total, pagination.PageSize, page)
	posts, err := s.postRepo.ListByGroup(ctx, group.ID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &GroupFeedResult{Group: group, Feed: FeedPage{Posts: posts, Page: p}}, nil
}

// Groups lists every group for the composer's group picker.
func (s *FeedService) Groups(ctx context.Context) ([]models.Group, error) {
	return s.groupRepo.List(ctx)
}

// Profile returns an author's page: profile header, follow state as seen by
// viewerID (0 for anonymous), and one page of the author's posts.
func (s *FeedService) Profile(ctx context.Context, username string, page int, viewerID uint) (*ProfileResult, error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	total, err := s.postRepo.CountByAuthor(ctx, author.ID)
	if err != nil {
		return nil, err
	}
	p := pagination.Resolve(total, pagination.PageSize, page)
	posts, err := s.postRepo.ListByAuthor(ctx, author.ID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}

	followers, err := s.followRepo.CountFollowers(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	following := false
	if viewerID != 0 && viewerID != author.ID {
		following, err = s.followRepo.Exists(ctx, viewerID, author.ID)
		if err != nil {
			return nil, err
		}
	}

	return &ProfileResult{
		Author:     author,
		PostsTotal: total,
		Followers:  followers,
		Following:  following,
		Feed:       FeedPage{Posts: posts, Page: p},
	}, nil
}

// FollowingFeed returns one page of posts authored by users the viewer
// follows. An empty page, not an error, when the viewer follows nobody.
func (s *FeedService) FollowingFeed(ctx context.Context, viewerID uint, page int) (*FeedPage, error) {
	total, err := s.postRepo.CountFollowed(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	p := pagination.Resolve(total, pagination.PageSize, page)
	posts, err := s.postRepo.ListFollowed(ctx, viewerID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Posts: posts, Page: p}, nil
}
