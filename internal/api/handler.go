package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/ctf-platform/internal/contest"
	"github.com/yakoovad/ctf-platform/internal/files"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/service"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	team       *service.TeamService
	challenges *service.ChallengeService
	scoreboard *service.ScoreboardService
	sessions   *service.SessionService
	files      files.Origin

	clock     *contest.Clock
	cookie    CookieConfig
	validator *Validator

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger, clock *contest.Clock) *Handler {
	return &Handler{
		logger: logger,
		clock:  clock,
		cookie: CookieConfig{Name: "ctf_session"},
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithChallengeService(challenges *service.ChallengeService) *Handler {
	h.challenges = challenges
	return h
}

func (h *Handler) WithScoreboardService(scoreboard *service.ScoreboardService) *Handler {
	h.scoreboard = scoreboard
	return h
}

func (h *Handler) WithSessionService(sessions *service.SessionService) *Handler {
	h.sessions = sessions
	return h
}

func (h *Handler) WithFileOrigin(origin files.Origin) *Handler {
	h.files = origin
	return h
}

func (h *Handler) WithCookie(cookie CookieConfig) *Handler {
	h.cookie = cookie
	return h
}

func (h *Handler) WithValidator(v *Validator) *Handler {
	h.validator = v
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	if h.validator != nil {
		e.Validator = h.validator
	}
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}

	api := e.Group("/api", SessionMiddleware(h.sessions, h.cookie.Name))

	api.GET("/contest", h.GetContest)
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/teams/:id/stats", h.GetTeamStats)
	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/activity", h.GetActivity)
	api.GET("/files/download", h.DownloadFile)

	api.GET("/session", h.GetSession, RequireSession)
	api.PATCH("/team", h.UpdateTeam, RequireSession)
	api.GET("/challenges", h.ListChallenges, RequireSession)
	api.GET("/challenges/:id", h.GetChallenge, RequireSession)
	api.POST("/challenges/:id/submit", h.SubmitFlag, RequireSession)
}

func (h *Handler) GetContest(e echo.Context) error {
	schedule := h.clock.Schedule()

	return e.JSON(http.StatusOK, echo.Map{
		"success":           true,
		"phase":             h.clock.Phase(),
		"registrationStart": schedule.RegistrationStart,
		"registrationEnd":   schedule.RegistrationEnd,
		"contestStart":      schedule.ContestStart,
		"contestEnd":        schedule.ContestEnd(),
		"serverTime":        h.clock.Now(),
	})
}

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	req := model.RegisterTeam{}
	if err := decodeRequest(e, &req); err != nil {
		l.Warn("invalid registration request", zap.String("reason", err.Message))
		return transportError(e, err)
	}

	team, err := h.team.Register(e.Request().Context(), &req)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusCreated, echo.Map{"success": true, "team": team})
}

func (h *Handler) Login(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	req := model.Login{}
	if err := decodeRequest(e, &req); err != nil {
		l.Warn("invalid login request", zap.String("reason", err.Message))
		return transportError(e, err)
	}

	res, err := h.team.Login(e.Request().Context(), &req)
	if err != nil {
		return transportError(e, err)
	}

	h.cookie.set(e, res.Token, res.ExpiresAt)

	return e.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		*model.LoginResult
	}{true, res})
}

func (h *Handler) Logout(e echo.Context) error {
	h.cookie.clear(e)
	return e.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *Handler) GetSession(e echo.Context) error {
	identity, _ := IdentityFromContext(e)

	team, err := h.team.GetTeam(e.Request().Context(), identity.Team.ID)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, echo.Map{"success": true, "team": team, "member": identity.Member})
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	identity, _ := IdentityFromContext(e)

	req := model.TeamUpdate{}
	if err := decodeRequest(e, &req); err != nil {
		l.Warn("invalid team update request", zap.String("reason", err.Message))
		return transportError(e, err)
	}

	team, err := h.team.UpdateTeam(e.Request().Context(), identity, &req)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, echo.Map{"success": true, "team": team})
}

func (h *Handler) GetTeamStats(e echo.Context) error {
	id, err := pathID(e, "invalid team id")
	if err != nil {
		return transportError(e, err)
	}

	stats, err := h.team.Stats(e.Request().Context(), id)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, echo.Map{"success": true, "stats": stats})
}

func (h *Handler) ListChallenges(e echo.Context) error {
	identity, _ := IdentityFromContext(e)

	list, err := h.challenges.List(e.Request().Context(), identity)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		*model.ChallengeList
	}{true, list})
}

func (h *Handler) GetChallenge(e echo.Context) error {
	identity, _ := IdentityFromContext(e)

	id, err := pathID(e, "invalid challenge id")
	if err != nil {
		return transportError(e, err)
	}

	ch, err := h.challenges.Get(e.Request().Context(), identity, id)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, echo.Map{"success": true, "challenge": ch})
}

func (h *Handler) SubmitFlag(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	identity, _ := IdentityFromContext(e)

	id, svcErr := pathID(e, "invalid challenge id")
	if svcErr != nil {
		return transportError(e, svcErr)
	}

	req := model.SubmitFlag{}
	if err := decodeRequest(e, &req); err != nil {
		l.Warn("invalid flag submission", zap.String("reason", err.Message))
		return transportError(e, err)
	}

	res, svcErr := h.challenges.SubmitFlag(e.Request().Context(), identity, id, req.Flag)
	if svcErr != nil {
		return transportError(e, svcErr)
	}

	return e.JSON(http.StatusOK, struct {
		Success bool `json:"success"`
		*model.SubmitResult
	}{true, res})
}

func (h *Handler) GetLeaderboard(e echo.Context) error {
	entries, err := h.scoreboard.Leaderboard(e.Request().Context())
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, echo.Map{"success": true, "leaderboard": entries})
}

func (h *Handler) GetActivity(e echo.Context) error {
	limit := service.DefaultActivityLimit
	if raw := e.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return transportError(e, service.NewError(service.ErrorCodeValidation, "limit must be an integer"))
		}
		limit = n
	}

	items, err := h.scoreboard.Activity(e.Request().Context(), limit)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, echo.Map{"success": true, "activity": items})
}

func pathID(e echo.Context, message string) (int64, *service.Error) {
	id, err := strconv.ParseInt(e.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.NewError(service.ErrorCodeValidation, message)
	}
	return id, nil
}

func transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Success bool           `json:"success"`
		Error   *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeValidation, service.ErrorCodeIncorrectFlag:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeForbidden, service.ErrorCodePhaseGate:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeTeamExists, service.ErrorCodeEmailExists, service.ErrorCodeAlreadySolved:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
