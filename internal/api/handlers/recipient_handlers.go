package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

// RecipientService manages a user's saved recipients
type RecipientService interface {
	Create(ctx context.Context, userID uuid.UUID, in entities.RecipientInput) (*entities.Recipient, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*entities.Recipient, error)
	List(ctx context.Context, userID uuid.UUID) ([]*entities.Recipient, error)
	Update(ctx context.Context, userID, id uuid.UUID, in entities.RecipientInput) (*entities.Recipient, error)
	ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// RecipientHandlers handles recipient HTTP requests
type RecipientHandlers struct {
	recipients RecipientService
	logger     *zap.Logger
}

// NewRecipientHandlers creates a new instance of RecipientHandlers
func NewRecipientHandlers(recipients RecipientService, logger *zap.Logger) *RecipientHandlers {
	return &RecipientHandlers{recipients: recipients, logger: logger}
}

// Create saves a new recipient
// @Summary Create recipient
// @Tags recipients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body entities.RecipientInput true "Recipient"
// @Success 201 {object} entities.Recipient
// @Failure 400 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/recipients [post]
func (h *RecipientHandlers) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in entities.RecipientInput
	if !bindJSON(c, &in) {
		return
	}

	rec, err := h.recipients.Create(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// List returns the user's recipients, favorites first
// @Summary List recipients
// @Tags recipients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} entities.Recipient
// @Router /api/v1/recipients [get]
func (h *RecipientHandlers) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := h.recipients.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []*entities.Recipient{}
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one recipient
// @Summary Get recipient
// @Tags recipients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Success 200 {object} entities.Recipient
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/recipients/{id} [get]
func (h *RecipientHandlers) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rec, err := h.recipients.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Update replaces a recipient's details
// @Summary Update recipient
// @Tags recipients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Param request body entities.RecipientInput true "Recipient"
// @Success 200 {object} entities.Recipient
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/recipients/{id} [put]
func (h *RecipientHandlers) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var in entities.RecipientInput
	if !bindJSON(c, &in) {
		return
	}

	rec, err := h.recipients.Update(c.Request.Context(), userID, id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ToggleFavorite flips a recipient's favorite flag
// @Summary Toggle favorite
// @Tags recipients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/recipients/{id}/favorite [post]
func (h *RecipientHandlers) ToggleFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	fav, err := h.recipients.ToggleFavorite(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_favorite": fav})
}

// Delete removes a recipient
// @Summary Delete recipient
// @Tags recipients
// @Security BearerAuth
// @Param id path string true "Recipient ID"
// @Success 204
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/recipients/{id} [delete]
func (h *RecipientHandlers) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.recipients.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
