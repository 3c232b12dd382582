package api

import (
	"log/slog"
	"net/http"

	"github.com/pocketshop-app/identity/internal/authflow"
	"github.com/pocketshop-app/identity/internal/identity"
	"github.com/pocketshop-app/identity/internal/platform/httpx"
	"github.com/pocketshop-app/identity/internal/shared"
)

type accountResponse struct {
	User         *identity.Identity `json:"user"`
	State        string             `json:"state"`
	PendingEmail string             `json:"pendingEmail,omitempty"`
}

type displayNameRequest struct {
	DisplayName string `json:"displayName"`
}

type changePasswordRequest struct {
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
	CurrentPassword    string `json:"currentPassword"`
}

type changeEmailRequest struct {
	NewEmail        string `json:"newEmail"`
	CurrentPassword string `json:"currentPassword"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func accountView(sess authflow.Session) accountResponse {
	return accountResponse{
		User:         sess.Identity,
		State:        sess.State().String(),
		PendingEmail: sess.PendingEmailChange,
	}
}

// saveSession persists pending-email marker changes the operation produced.
func (h *Handler) saveSession(r *http.Request, co *authflow.Coordinator) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	pending := co.Session().PendingEmailChange
	if sess.PendingEmail == pending {
		return
	}
	sess.PendingEmail = pending
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Warn("save session", slog.Any("error", err))
	}
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()
	httpx.JSON(w, http.StatusOK, accountView(co.Session()))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.RefreshUserData(r.Context())
	h.observe("refresh_user_data", res)
	h.saveSession(r, co)
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) updateDisplayName(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.UpdateDisplayName(r.Context(), req.DisplayName)
	h.observe("update_display_name", res)
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.ChangePassword(r.Context(), req.NewPassword, req.ConfirmNewPassword, req.CurrentPassword)
	h.observe("change_password", res)
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) changeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.ChangeEmail(r.Context(), req.NewEmail, req.CurrentPassword)
	h.observe("change_email", res)
	h.saveSession(r, co)
	httpx.JSON(w, http.StatusOK, res)
}

// cancelEmailChange drops the pending-email tracking. The server-side
// change stays live; only following the emailed link applies it.
func (h *Handler) cancelEmailChange(w http.ResponseWriter, r *http.Request) {
	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	co.SetPendingEmailChange("")
	h.saveSession(r, co)
	httpx.JSON(w, http.StatusOK, authflow.Result{Success: true})
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.DeleteAccount(r.Context(), req.Password)
	h.observe("delete_account", res)
	if res.Success {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			if err := h.sessions.Destroy(r.Context(), sess); err != nil {
				h.logger.Warn("destroy session", slog.Any("error", err))
			}
		}
	}
	httpx.JSON(w, http.StatusOK, res)
}
