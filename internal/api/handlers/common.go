package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ryzan/ryzan_service/internal/api/middleware"
)

var validate = validator.New()

// bindJSON decodes the request body into dst and runs its validate tags.
// On failure the response has already been written.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		sendError(c, http.StatusBadRequest, ErrCodeInvalidRequest, MsgInvalidRequest, map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			SendValidationError(c, "Request validation failed", lo.SliceToMap(verrs, func(fe validator.FieldError) (string, string) {
				return fe.Field(), fe.Tag()
			}))
			return false
		}
		SendBadRequest(c, ErrCodeValidationError, err.Error())
		return false
	}
	return true
}

// currentUser returns the authenticated user's ID. It writes a 401 when the
// request carries no user.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		SendUnauthorized(c, MsgUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses the named path parameter as a UUID
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter, falling back to def when the
// value is missing or malformed
func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
