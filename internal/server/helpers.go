// Package server contains the HTTP handlers for the dispatch API.
package server

import (
	"errors"
	"strings"
	"unicode"

	"dispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "branchId" -> "branch ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	// Split on camelCase boundary before the trailing "Id" suffix.
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		// Split camelCase prefix into words.
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID reads the authenticated user id set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	uid, _ := c.Locals("userID").(uint)
	return uid
}

// currentUser materializes the authenticated user for access checks that
// need more than the raw id.
func (s *Server) currentUser(c *fiber.Ctx) (*models.User, error) {
	return s.userRepo.GetByID(c.Context(), currentUserID(c))
}

// respondServiceError maps an AppError code to its HTTP status and writes
// the JSON error body. Unknown errors become 500s.
func respondServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	status := fiber.StatusInternalServerError
	switch appErr.Code {
	case models.CodeNotFound:
		status = fiber.StatusNotFound
	case models.CodeValidation:
		status = fiber.StatusBadRequest
	case models.CodeUnauthorized:
		status = fiber.StatusForbidden
	case models.CodeInvalidTransition, models.CodeRequestClosed:
		status = fiber.StatusConflict
	}
	return models.RespondWithError(c, status, appErr)
}

