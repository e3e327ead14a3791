package server

import (
	"quill/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Follow subscribes the actor to the named author and returns to the
// author's profile. Re-follows and self-follows land on the same redirect.
func (s *Server) Follow(c *fiber.Ctx) error {
	author, err := s.followService.Follow(c.Context(), middleware.ActingUserID(c), c.Params("username"))
	if err != nil {
		return s.renderError(c, err)
	}
	return redirectToProfile(c, author.Username)
}

// Unfollow removes the subscription and returns to the author's profile.
func (s *Server) Unfollow(c *fiber.Ctx) error {
	author, err := s.followService.Unfollow(c.Context(), middleware.ActingUserID(c), c.Params("username"))
	if err != nil {
		return s.renderError(c, err)
	}
	return redirectToProfile(c, author.Username)
}
