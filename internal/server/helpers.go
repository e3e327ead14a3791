package server

import (
	"errors"
	"fmt"
	"strings"

	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts the :id route parameter as a positive uint. On failure it
// writes a 404 response and returns errResponseWritten: a non-numeric id is a
// page that does not exist, not a malformed API call.
func (s *Server) parseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		_ = s.NotFoundHandler(c)
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// renderError maps a service error onto the HTTP response.
func (s *Server) renderError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "NOT_FOUND":
			return models.RespondWithError(c, fiber.StatusNotFound, err)
		case "VALIDATION_ERROR":
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		case "UNAUTHORIZED":
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, err)
}

// redirectToProfile sends the actor to an author's page.
func redirectToProfile(c *fiber.Ctx, username string) error {
	return c.Redirect("/profile/"+username+"/", fiber.StatusFound)
}

// redirectToPost sends the actor to a post's detail page.
func redirectToPost(c *fiber.Ctx, postID uint) error {
	return c.Redirect(fmt.Sprintf("/posts/%d/", postID), fiber.StatusFound)
}

// safeNextPath returns the next query parameter when it is a local path, so a
// crafted login link can never bounce the actor to another origin.
func safeNextPath(c *fiber.Ctx) string {
	next := c.Query("next")
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
