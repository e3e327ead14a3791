package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

type AddCommentInput struct {
	PostID   uint
	AuthorID uint
	Text     string
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{commentRepo: commentRepo, postRepo: postRepo}
}

// AddComment attaches a comment to an existing post. A missing post is the
// caller's 404; validation failures come back as field errors for the form.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, validation.FieldErrors, error) {
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, nil, err
	}

	form := validation.CommentForm{Text: in.Text}
	if fieldErrs := validation.CheckCommentForm(&form); len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}

	comment := &models.Comment{
		PostID:   in.PostID,
		AuthorID: in.AuthorID,
		Text:     form.Text,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, nil, err
	}
	return comment, nil, nil
}

// ListComments returns the post's comments oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID)
}
