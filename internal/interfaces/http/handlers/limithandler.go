package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quell/internal/infrastructure/ratelimit"
	"quell/internal/shared/logger"
	"quell/internal/shared/utils"
)

// CheckRequest asks for an admission decision on behalf of a caller-supplied
// identifier. Limit and window fall back to the process-wide defaults when
// omitted.
type CheckRequest struct {
	Identifier    string `json:"identifier" binding:"required"`
	Limit         int    `json:"limit" binding:"omitempty,gt=0"`
	WindowSeconds int    `json:"window_seconds" binding:"omitempty,gt=0"`
}

// DecisionResponse is the wire form of a rate limit decision.
type DecisionResponse struct {
	Allowed           bool  `json:"allowed"`
	Remaining         int   `json:"remaining"`
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

func toDecisionResponse(dec ratelimit.Decision) DecisionResponse {
	resp := DecisionResponse{
		Allowed:   dec.Allowed,
		Remaining: dec.Remaining,
	}
	if !dec.Allowed {
		resp.RetryAfterSeconds = int64((dec.RetryAfter + time.Second - 1) / time.Second)
	}
	return resp
}

// LimitHandler exposes the admission registry to sibling services that track
// limits for identifiers of their own (API keys, account IDs, and the like).
type LimitHandler struct {
	limiter       ratelimit.Limiter
	defaultLimit  int
	defaultWindow time.Duration
	logger        logger.Interface
}

func NewLimitHandler(limiter ratelimit.Limiter, defaultLimit int, defaultWindow time.Duration, log logger.Interface) *LimitHandler {
	return &LimitHandler{
		limiter:       limiter,
		defaultLimit:  defaultLimit,
		defaultWindow: defaultWindow,
		logger:        log,
	}
}

// Check handles POST /api/v1/limits/check
func (h *LimitHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "identifier is required, limit and window_seconds must be positive")
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = h.defaultLimit
	}
	window := time.Duration(req.WindowSeconds) * time.Second
	if window == 0 {
		window = h.defaultWindow
	}

	dec, err := h.limiter.Acquire(c.Request.Context(), req.Identifier, limit, window)
	if err != nil {
		// fail open: report the action as admitted rather than blocking it
		h.logger.Errorw("limit check failed, allowing",
			"identifier", req.Identifier,
			"error", err,
		)
		utils.SuccessResponse(c, http.StatusOK, "", DecisionResponse{Allowed: true})
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toDecisionResponse(dec))
}

// Reset handles DELETE /api/v1/limits/:identifier
func (h *LimitHandler) Reset(c *gin.Context) {
	identifier := c.Param("identifier")
	if identifier == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "identifier is required")
		return
	}

	if err := h.limiter.Reset(c.Request.Context(), identifier); err != nil {
		h.logger.Errorw("limit reset failed", "identifier", identifier, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to reset limit")
		return
	}

	utils.NoContentResponse(c)
}
