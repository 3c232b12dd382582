package api

import (
	"log/slog"
	"net/http"

	"github.com/pocketshop-app/identity/internal/authflow"
	"github.com/pocketshop-app/identity/internal/identity"
	"github.com/pocketshop-app/identity/internal/platform/httpx"
	"github.com/pocketshop-app/identity/internal/shared"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	DisplayName     string `json:"displayName"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// sessionResult augments an operation result with a freshly issued bearer
// token.
type sessionResult struct {
	authflow.Result
	Token string `json:"token,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
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

	res := co.Login(r.Context(), req.Email, req.Password)
	h.observe("login", res)
	if !res.Success || co.Session().Identity == nil {
		// Failed attempts and the unverified case leave no signed-in
		// principal, so no token is issued.
		httpx.JSON(w, http.StatusOK, res)
		return
	}

	sess, err := h.sessions.Issue(r.Context(), co.Session().Identity.ID)
	if err != nil {
		h.logger.Error("issue session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "session failure", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResult{Result: res, Token: sess.Token})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
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

	res := co.Signup(r.Context(), req.Email, req.Password, req.ConfirmPassword, req.DisplayName)
	h.observe("signup", res)
	// Signup ends signed out pending verification; no token is issued.
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.Logout(r.Context())
	h.observe("logout", res)
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if err := h.sessions.Destroy(r.Context(), sess); err != nil {
			h.logger.Warn("destroy session", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, res)
}

// sendVerificationEmail re-sends the verification link. With a session it
// goes through the coordinator; without one an explicit address selects the
// post-signup resend path.
func (h *Handler) sendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	if shared.SessionFromContext(r.Context()) == nil && req.Email != "" {
		err := h.provider.SendVerificationEmailTo(r.Context(), req.Email)
		if err != nil && identity.CodeOf(err) != identity.CodeAccountNotFound {
			h.respondBackendErr(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, authflow.Result{Success: true})
		return
	}

	co, _, cleanup, err := h.resume(r)
	if err != nil {
		h.respondBackendErr(w, r, err)
		return
	}
	defer cleanup()

	res := co.SendVerificationEmail(r.Context())
	h.observe("send_verification_email", res)
	httpx.JSON(w, http.StatusOK, res)
}

// resetPassword answers uniformly whether or not the address has an account,
// so the endpoint cannot be used to enumerate registered emails. Field
// validation failures still surface.
func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
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

	res := co.ResetPassword(r.Context(), req.Email)
	h.observe("reset_password", res)

	// Structurally invalid requests keep the coordinator's message; for a
	// well-formed address the outcome is masked either way.
	if h.validate.Var(req.Email, "required,email") != nil {
		httpx.JSON(w, http.StatusOK, res)
		return
	}
	if !res.Success {
		h.logger.Info("password reset not delivered", slog.String("email", req.Email), slog.String("reason", res.Error))
	}
	httpx.JSON(w, http.StatusOK, authflow.Result{
		Success: true,
		Data:    &authflow.Data{Message: "If an account exists for this email, a password reset link has been sent."},
	})
}
