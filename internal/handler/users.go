package handler

import (
	"frecipe_service/internal/models"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /users
func (h *Handler) SignUp(c *gin.Context) {
	const op = "handler.SignUp"

	log := h.log.With(slog.String("op", op))

	var in models.SignUpInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	user, err := h.accounts.SignUp(c.Request.Context(), in)
	if err != nil {
		respondError(c, log, err)

		return
	}

	log.Info("user signed up", slog.String("username", user.Username))

	c.JSON(http.StatusCreated, user)
}

// POST /users/login
func (h *Handler) SignIn(c *gin.Context) {
	const op = "handler.SignIn"

	log := h.log.With(slog.String("op", op))

	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	token, err := h.accounts.SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.String(http.StatusOK, token)
}

// GET /users
func (h *Handler) ListUsers(c *gin.Context) {
	const op = "handler.ListUsers"

	log := h.log.With(slog.String("op", op))

	users, err := h.accounts.ListAll(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, users)
}

// GET /users/details
func (h *Handler) GetDetails(c *gin.Context) {
	const op = "handler.GetDetails"

	log := h.log.With(slog.String("op", op))

	user, err := h.accounts.Retrieve(c.Request.Context(), identityFrom(c))
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// PUT /users
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	var in models.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	user, err := h.accounts.Update(c.Request.Context(), identityFrom(c), in)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// POST /users/roles/assign
func (h *Handler) AssignRole(c *gin.Context) {
	const op = "handler.AssignRole"

	log := h.log.With(slog.String("op", op))

	var in models.RoleChange
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	user, err := h.accounts.AssignRole(c.Request.Context(), identityFrom(c), in)
	if err != nil {
		respondError(c, log, err)

		return
	}

	log.Info("role assigned", slog.String("username", user.Username), slog.String("role", in.Role))

	c.JSON(http.StatusOK, user)
}

// POST /users/roles/remove
func (h *Handler) RemoveRole(c *gin.Context) {
	const op = "handler.RemoveRole"

	log := h.log.With(slog.String("op", op))

	var in models.RoleChange
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Debug("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	user, err := h.accounts.RemoveRole(c.Request.Context(), identityFrom(c), in)
	if err != nil {
		respondError(c, log, err)

		return
	}

	log.Info("role removed", slog.String("username", user.Username), slog.String("role", in.Role))

	c.JSON(http.StatusOK, user)
}
