package api

import (
	"net/http"

	"github.com/pocketshop-app/identity/internal/platform/httpx"
)

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// actionToken accepts the token from the query string (the emailed link) or
// a JSON body.
func (h *Handler) actionToken(r *http.Request) (string, bool) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	var req tokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || h.validate.Struct(req) != nil {
		return "", false
	}
	return req.Token, true
}

// verifyEmail consumes a verification link token. Live clients of the
// account observe the change and their coordinators leave the
// pending-verification state.
func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token, ok := h.actionToken(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := h.provider.ApplyVerifyEmail(r.Context(), token); err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) applyPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || h.validate.Struct(req) != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := h.provider.ApplyPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// confirmEmailChange applies a pending email change. The hub notification
// reaches live coordinators, which clear their pending-email marker.
func (h *Handler) confirmEmailChange(w http.ResponseWriter, r *http.Request) {
	token, ok := h.actionToken(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := h.provider.ApplyEmailChange(r.Context(), token); err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
