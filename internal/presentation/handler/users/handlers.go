package users

import (
	"errors"
	"net/http"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/json"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/session"
	"github.com/hilthontt/cheahlytics/internal/presentation/utils"
	"github.com/hilthontt/cheahlytics/internal/usecases/accounts"
)

type Handler struct {
	accounts accounts.AccountUseCase
	sessions *session.Manager
	logger   logging.Logger
}

func NewHandler(accounts accounts.AccountUseCase, sessions *session.Manager, logger logging.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterHandler godoc
// @Summary      Sign up
// @Description  Creates an account and signs it in
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body credentialsRequest true "Email and password"
// @Success      201 {object} map[string]interface{} "Signed up"
// @Failure      400 {object} map[string]interface{} "Body is not valid JSON"
// @Failure      422 {object} map[string]interface{} "Validation errors"
// @Router       /users [post]
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), req.User.Email, req.User.Password)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			json.WriteFieldErrors(w, verr.Fields)
		case errors.Is(err, domain.ErrEmailTaken):
			json.WriteFieldErrors(w, map[string][]string{"email": {"has already been taken"}})
		default:
			h.logger.Error(logging.General, logging.Session, "sign up failed", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			json.WriteInternalError(w, err)
		}
		return
	}

	if err := h.startSession(w, user); err != nil {
		json.WriteInternalError(w, err)
		return
	}
	json.Write(w, http.StatusCreated, user)
}

// SignInHandler godoc
// @Summary      Sign in
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body credentialsRequest true "Email and password"
// @Success      200 {object} map[string]interface{} "Signed in"
// @Failure      401 {object} map[string]interface{} "Invalid email or password"
// @Router       /sessions [post]
func (h *Handler) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.User.Email, req.User.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			json.WriteError(w, http.StatusUnauthorized, err, "Invalid email or password.")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	if err := h.startSession(w, user); err != nil {
		json.WriteInternalError(w, err)
		return
	}
	json.Write(w, http.StatusOK, user)
}

// SignOutHandler godoc
// @Summary      Sign out
// @Tags         users
// @Success      204 "Signed out"
// @Router       /sessions [delete]
func (h *Handler) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	utils.ClearSessionCookie(w, h.sessions.CookieName(), h.sessions.Secure())
	w.WriteHeader(http.StatusNoContent)
}

// CurrentUserHandler godoc
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Success      200 {object} map[string]interface{} "Signed-in user"
// @Failure      401 {object} map[string]interface{} "Not signed in"
// @Security     SessionAuth
// @Router       /sessions [get]
func (h *Handler) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := utils.CurrentUser(r)
	if user == nil {
		json.WriteUnauthorizedError(w)
		return
	}

	json.Write(w, http.StatusOK, user)
}

func (h *Handler) startSession(w http.ResponseWriter, user *domain.User) error {
	token, expires, err := h.sessions.Issue(user.ID)
	if err != nil {
		return err
	}
	utils.SetSessionCookie(w, h.sessions.CookieName(), token, expires, h.sessions.Secure())
	return nil
}
