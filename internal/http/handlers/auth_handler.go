package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todos-backend/internal/http/middleware"
)

// AuthStatusResponse reports the identity attached to an authenticated request.
type AuthStatusResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated" example:"true"`
	UserID          string `json:"userId" example:"kX2pQ9mZ1vTg7bYhC3nR"`
	Email           string `json:"email,omitempty" example:"ada@example.com"`
}

// ValidateAuth godoc
// @ID          validateAuth
// @Summary     Validate bearer token
// @Description Returns the verified identity of the caller. Useful for clients to check whether a stored token is still accepted.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.AuthStatusResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /auth/validate [get]
func (h *Handlers) ValidateAuth(c *gin.Context) {
	uid, found := callerID(c)
	if !found {
		return
	}
	resp := AuthStatusResponse{IsAuthenticated: true, UserID: uid}
	if id, has := middleware.IdentityFrom(c); has {
		resp.Email = id.Email
	}
	ok(c, http.StatusOK, resp)
}
