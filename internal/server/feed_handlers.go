package server

import (
	"quill/internal/middleware"
	"quill/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

// Index serves the global feed: every post, newest first, paginated. The
// response passes through the whole-page cache, so it must stay identical for
// every viewer.
func (s *Server) Index(c *fiber.Ctx) error {
	page := pagination.ParsePage(c.Query("page"))
	feed, err := s.feedService.GlobalFeed(c.Context(), page)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(feed)
}

// GroupFeed serves one group's posts; unknown slugs are 404s.
func (s *Server) GroupFeed(c *fiber.Ctx) error {
	page := pagination.ParsePage(c.Query("page"))
	result, err := s.feedService.GroupFeed(c.Context(), c.Params("slug"), page)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(result)
}

// Profile serves an author's page with their posts and, for authenticated
// viewers, whether the viewer follows them.
func (s *Server) Profile(c *fiber.Ctx) error {
	page := pagination.ParsePage(c.Query("page"))
	viewerID := middleware.ActingUserID(c)
	result, err := s.feedService.Profile(c.Context(), c.Params("username"), page, viewerID)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(result)
}

// FollowIndex serves the personalized feed of followed authors' posts.
func (s *Server) FollowIndex(c *fiber.Ctx) error {
	page := pagination.ParsePage(c.Query("page"))
	feed, err := s.feedService.FollowingFeed(c.Context(), middleware.ActingUserID(c), page)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(feed)
}
