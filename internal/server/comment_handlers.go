package server

import (
	"quill/internal/middleware"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddComment attaches a comment to a post and returns to the post's detail
// page whether or not the comment was accepted: an invalid submission is
// simply dropped, never re-rendered with field errors.
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	_, _, err = s.commentService.AddComment(c.Context(), service.AddCommentInput{
		PostID:   id,
		AuthorID: middleware.ActingUserID(c),
		Text:     c.FormValue("text"),
	})
	if err != nil {
		return s.renderError(c, err)
	}

	return redirectToPost(c, id)
}
