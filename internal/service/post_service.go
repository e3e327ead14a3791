package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"
)

type PostService struct {
	postRepo  repository.PostRepository
	groupRepo repository.GroupRepository
}

// CreatePostInput carries a validated-or-not composer submission. ImagePath
// is already stored media, resolved by the handler before the service runs.
type CreatePostInput struct {
	AuthorID  uint
	Text      string
	GroupID   *uint
	ImagePath string
}

type UpdatePostInput struct {
	ActorID   uint
	PostID    uint
	Text      string
	GroupID   *uint
	ImagePath string
	// KeepImage leaves the stored attachment untouched when no new upload
	// accompanies the edit.
	KeepImage bool
}

func NewPostService(postRepo repository.PostRepository, groupRepo repository.GroupRepository) *PostService {
	return &PostService{postRepo: postRepo, groupRepo: groupRepo}
}

// GetPost returns a post with author, group, and comment count attached.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// CreatePost validates the submission and stores the post. Field errors come
// back as a non-nil FieldErrors with a nil error; the caller re-renders the
// form around them instead of failing the request.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, validation.FieldErrors, error) {
	form := validation.PostForm{Text: in.Text, GroupID: in.GroupID}
	if fieldErrs := validation.CheckPostForm(&form); len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}

	if form.GroupID != nil {
		if _, err := s.groupRepo.GetByID(ctx, *form.GroupID); err != nil {
			if models.IsNotFound(err) {
				return nil, validation.FieldErrors{{Field: "group_id", Message: "Unknown group"}}, nil
			}
			return nil, nil, err
		}
	}

	post := &models.Post{
		Text:      form.Text,
		AuthorID:  in.AuthorID,
		GroupID:   form.GroupID,
		ImagePath: in.ImagePath,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, nil, err
	}
	observability.PostsCreated.Inc()

	created, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, nil, nil
}

// UpdatePost edits a post. A non-author actor gets models.ErrNotPostAuthor;
// the handler turns it into a quiet redirect to the post, never an error
// page. Authorship itself never changes on edit.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, validation.FieldErrors, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, nil, err
	}
	if post.AuthorID != in.ActorID {
		return nil, nil, models.ErrNotPostAuthor
	}

	form := validation.PostForm{Text: in.Text, GroupID: in.GroupID}
	if fieldErrs := validation.CheckPostForm(&form); len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}
	if form.GroupID != nil {
		if _, err := s.groupRepo.GetByID(ctx, *form.GroupID); err != nil {
			if models.IsNotFound(err) {
				return nil, validation.FieldErrors{{Field: "group_id", Message: "Unknown group"}}, nil
			}
			return nil, nil, err
		}
	}

	post.Text = form.Text
	post.GroupID = form.GroupID
	if !in.KeepImage {
		post.ImagePath = in.ImagePath
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, nil, err
	}

	updated, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, nil, nil
}

// DeletePost removes a post; only the author may do it.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return models.ErrNotPostAuthor
	}
	return s.postRepo.Delete(ctx, postID)
}
