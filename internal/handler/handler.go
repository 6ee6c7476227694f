package handler

import (
	"context"
	"errors"
	"frecipe_service/internal/auth"
	"frecipe_service/internal/models"
	"frecipe_service/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type AccountService interface {
	SignUp(ctx context.Context, in models.SignUpInput) (models.User, error)
	SignIn(ctx context.Context, username, password string) (string, error)
	Retrieve(ctx context.Context, identity auth.Identity) (models.User, error)
	Update(ctx context.Context, identity auth.Identity, in models.ProfileUpdate) (models.User, error)
	ListAll(ctx context.Context, identity auth.Identity) ([]models.User, error)
	AssignRole(ctx context.Context, identity auth.Identity, in models.RoleChange) (models.User, error)
	RemoveRole(ctx context.Context, identity auth.Identity, in models.RoleChange) (models.User, error)
}

type InventoryService interface {
	Retrieve(ctx context.Context, identity auth.Identity) (models.Fridge, error)
	AddIngredient(ctx context.Context, identity auth.Identity, in models.NewIngredient) (models.Ingredient, error)
	Rename(ctx context.Context, identity auth.Identity, in models.FridgeRename) (models.Fridge, error)
}

type TokenVerifier interface {
	Verify(token string, now time.Time) (auth.Identity, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// PublicUserList serves GET /users without a token.
	PublicUserList bool
	Now            func() time.Time
}

type Handler struct {
	accounts  AccountService
	inventory InventoryService
	tokens    TokenVerifier
	health    Pinger
	opts      Options
	log       *slog.Logger
}

type errorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(accounts AccountService, inventory InventoryService, tokens TokenVerifier, health Pinger, lgr *slog.Logger, opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Handler{
		accounts:  accounts,
		inventory: inventory,
		tokens:    tokens,
		health:    health,
		opts:      opts,
		log:       lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), RequestLogger(h.log), gin.Recovery())

	router.GET("/healthz", h.Health)

	users := router.Group("/users")
	{
		users.POST("", h.SignUp)
		users.POST("/login", h.SignIn)

		if h.opts.PublicUserList {
			users.GET("", h.ListUsers)
		} else {
			users.GET("", h.AuthMiddleware(), h.ListUsers)
		}

		authed := users.Group("", h.AuthMiddleware())
		authed.GET("/details", h.GetDetails)
		authed.PUT("", h.UpdateProfile)

		roles := authed.Group("/roles")
		{
			roles.POST("/assign", h.AssignRole)
			roles.POST("/remove", h.RemoveRole)
		}
	}

	fridges := router.Group("/fridges", h.AuthMiddleware())
	{
		fridges.GET("", h.GetFridge)
		fridges.POST("", h.AddIngredient)
		fridges.PUT("", h.RenameFridge)
	}

	return router
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	const op = "handler.Health"

	log := h.log.With(slog.String("op", op))

	if err := h.health.Ping(c.Request.Context()); err != nil {
		log.Error("storage ping failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError translates a service error into a status code and body.
// Unexpected errors are logged and hidden behind a generic message.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		log.Debug("validation failed", slog.Any("error", err))

		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Message: "validation failed",
			Fields:  verr.Fields(),
		})
	case errors.Is(err, service.ErrDuplicateUsername):
		newErrorResponse(c, http.StatusConflict, "username already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		newErrorResponse(c, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, service.ErrUnauthenticated):
		newErrorResponse(c, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		newErrorResponse(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "not found")
	default:
		log.Error("request failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}
