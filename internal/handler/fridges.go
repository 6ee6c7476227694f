package handler

import (
	"frecipe_service/internal/models"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /fridges
func (h *Handler) GetFridge(c *gin.Context) {
	const op = "handler.GetFridge"

	log := h.log.With(slog.String("op", op))

	fridge, err := h.inventory.Retrieve(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, fridge)
}

// POST /fridges
func (h *Handler) AddIngredient(c *gin.Context) {
	const op = "handler.AddIngredient"

	log := h.log.With(slog.String("op", op))

	var in models.NewIngredient
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	ingredient, err := h.inventory.AddIngredient(c.Request.Context(), identityFrom(c), in)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, ingredient)
}

// PUT /fridges
func (h *Handler) RenameFridge(c *gin.Context) {
	const op = "handler.RenameFridge"

	log := h.log.With(slog.String("op", op))

	var in models.FridgeRename
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	fridge, err := h.inventory.Rename(c.Request.Context(), identityFrom(c), in)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, fridge)
}
