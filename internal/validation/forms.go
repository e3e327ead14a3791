// Package validation provides pure form validation: raw input maps to either
// a valid typed record or a structured list of field errors.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError annotates a single form field with a human-readable problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is the structured validation result re-rendered alongside the
// originating form. An empty slice means the input was valid.
type FieldErrors []FieldError

// PostForm is the raw input for creating or editing a post.
type PostForm struct {
	Text    string `form:"text" json:"text" validate:"required,max=10000"`
	GroupID *uint  `form:"group_id" json:"group_id" validate:"omitempty,gt=0"`
}

// CommentForm is the raw input for adding a comment to a post.
type CommentForm struct {
	Text string `form:"text" json:"text" validate:"required,max=2000"`
}

// CheckPostForm validates a post form. It trims the text first so
// whitespace-only bodies fail the required rule.
func CheckPostForm(f *PostForm) FieldErrors {
	f.Text = strings.TrimSpace(f.Text)
	return collect(validate.Struct(f))
}

// CheckCommentForm validates a comment form.
func CheckCommentForm(f *CommentForm) FieldErrors {
	f.Text = strings.TrimSpace(f.Text)
	return collect(validate.Struct(f))
}

func collect(err error) FieldErrors {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{{Field: "form", Message: "Invalid input"}}
	}

	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "gt":
		return "Must be a positive number"
	default:
		return "Invalid value"
	}
}
