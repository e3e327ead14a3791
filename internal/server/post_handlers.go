package server

import (
	"errors"
	"io"
	"strconv"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"
	"quill/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetPost serves a post detail page: the post, its comments oldest first, and
// the comment form schema.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), id)
	if err != nil {
		return s.renderError(c, err)
	}
	comments, err := s.commentService.ListComments(c.Context(), id)
	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"post":         post,
		"comments":     comments,
		"comment_form": fiber.Map{"fields": []string{"text"}},
	})
}

// NewPostForm serves the composer payload: the groups available for the
// optional group field.
func (s *Server) NewPostForm(c *fiber.Ctx) error {
	groups, err := s.feedService.Groups(c.Context())
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"groups": groups,
		"fields": []string{"text", "group_id", "image"},
	})
}

// CreatePost handles a composer submission. Invalid input re-renders the form
// with field errors at 200; success redirects to the actor's own profile.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	text, groupID, fieldErrs := s.parsePostForm(c)
	if fieldErrs != nil {
		return s.renderFormErrors(c, fieldErrs)
	}

	imagePath, fieldErrs, err := s.storeUploadedImage(c)
	if err != nil {
		return s.renderError(c, err)
	}
	if fieldErrs != nil {
		return s.renderFormErrors(c, fieldErrs)
	}

	post, fieldErrs, err := s.postService.CreatePost(c.Context(), service.CreatePostInput{
		AuthorID:  middleware.ActingUserID(c),
		Text:      text,
		GroupID:   groupID,
		ImagePath: imagePath,
	})
	if err != nil {
		return s.renderError(c, err)
	}
	if len(fieldErrs) > 0 {
		return s.renderFormErrors(c, fieldErrs)
	}

	return redirectToProfile(c, post.Author.Username)
}

// EditPostForm serves the edit payload. A non-author actor is quietly sent to
// the post's detail page.
func (s *Server) EditPostForm(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), id)
	if err != nil {
		return s.renderError(c, err)
	}
	if post.AuthorID != middleware.ActingUserID(c) {
		return redirectToPost(c, id)
	}

	groups, err := s.feedService.Groups(c.Context())
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"post":    post,
		"groups":  groups,
		"is_edit": true,
		"fields":  []string{"text", "group_id", "image"},
	})
}

// UpdatePost handles an edit submission and redirects to the post detail page
// on success. Non-authors get the same redirect without the edit, before any
// of their input is even looked at.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	existing, err := s.postService.GetPost(c.Context(), id)
	if err != nil {
		return s.renderError(c, err)
	}
	if existing.AuthorID != middleware.ActingUserID(c) {
		return redirectToPost(c, id)
	}

	text, groupID, fieldErrs := s.parsePostForm(c)
	if fieldErrs != nil {
		return s.renderFormErrors(c, fieldErrs)
	}

	imagePath, fieldErrs, err := s.storeUploadedImage(c)
	if err != nil {
		return s.renderError(c, err)
	}
	if fieldErrs != nil {
		return s.renderFormErrors(c, fieldErrs)
	}

	_, fieldErrs, err = s.postService.UpdatePost(c.Context(), service.UpdatePostInput{
		ActorID:   middleware.ActingUserID(c),
		PostID:    id,
		Text:      text,
		GroupID:   groupID,
		ImagePath: imagePath,
		KeepImage: imagePath == "",
	})
	if err != nil {
		if errors.Is(err, models.ErrNotPostAuthor) {
			return redirectToPost(c, id)
		}
		return s.renderError(c, err)
	}
	if len(fieldErrs) > 0 {
		return s.renderFormErrors(c, fieldErrs)
	}

	return redirectToPost(c, id)
}

// parsePostForm reads the text and group_id fields from a multipart or
// urlencoded body. A malformed group_id is a field error, not a 400.
func (s *Server) parsePostForm(c *fiber.Ctx) (string, *uint, validation.FieldErrors) {
	text := c.FormValue("text")

	var groupID *uint
	if raw := c.FormValue("group_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			return "", nil, validation.FieldErrors{{Field: "group_id", Message: "Must be a positive number"}}
		}
		gid := uint(parsed)
		groupID = &gid
	}
	return text, groupID, nil
}

// storeUploadedImage saves the optional image part and returns its stored
// path. A missing file is fine; a non-image upload is a field error.
func (s *Server) storeUploadedImage(c *fiber.Ctx) (string, validation.FieldErrors, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		// No multipart part named image; the attachment is optional.
		return "", nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}

	path, err := s.mediaService.Store(content)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR" {
			return "", validation.FieldErrors{{Field: "image", Message: appErr.Message}}, nil
		}
		return "", nil, err
	}
	return path, nil, nil
}

// renderFormErrors re-renders a submitted form around its field errors. The
// submission failed but the page render succeeded, hence 200.
func (s *Server) renderFormErrors(c *fiber.Ctx, fieldErrs validation.FieldErrors) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"errors": fieldErrs,
	})
}
