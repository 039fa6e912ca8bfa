package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quell/internal/infrastructure/otp"
	"quell/internal/shared/logger"
	"quell/internal/shared/utils"
)

// OTPThrottleRequest identifies a verification flow by the address the code
// was issued to and the purpose it was issued for.
type OTPThrottleRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Purpose string `json:"purpose" binding:"required"`
}

// OTPHandler exposes verification throttling decisions so that the services
// which actually send and verify codes can consult a shared budget.
type OTPHandler struct {
	throttle *otp.Throttle
	logger   logger.Interface
}

func NewOTPHandler(throttle *otp.Throttle, log logger.Interface) *OTPHandler {
	return &OTPHandler{throttle: throttle, logger: log}
}

// CheckAttempt handles POST /api/v1/otp/attempts/check
func (h *OTPHandler) CheckAttempt(c *gin.Context) {
	var req OTPThrottleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "email and purpose are required")
		return
	}

	dec := h.throttle.AllowAttempt(c.Request.Context(), req.Email, req.Purpose)
	utils.SuccessResponse(c, http.StatusOK, "", toDecisionResponse(dec))
}

// CheckResend handles POST /api/v1/otp/resends/check
func (h *OTPHandler) CheckResend(c *gin.Context) {
	var req OTPThrottleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "email and purpose are required")
		return
	}

	dec := h.throttle.AllowResend(c.Request.Context(), req.Email, req.Purpose)
	utils.SuccessResponse(c, http.StatusOK, "", toDecisionResponse(dec))
}

// Clear handles POST /api/v1/otp/clear, called after a successful
// verification so stale counters do not outlive the flow.
func (h *OTPHandler) Clear(c *gin.Context) {
	var req OTPThrottleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "email and purpose are required")
		return
	}

	if err := h.throttle.Clear(c.Request.Context(), req.Email, req.Purpose); err != nil {
		h.logger.Errorw("otp throttle clear failed",
			"email", utils.MaskEmail(req.Email),
			"purpose", req.Purpose,
			"error", err,
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to clear throttle state")
		return
	}

	utils.NoContentResponse(c)
}
