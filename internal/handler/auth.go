package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/server-go/internal/audit"
	apperrors "github.com/taskdeck/server-go/internal/errors"
	"github.com/taskdeck/server-go/internal/middleware"
	"github.com/taskdeck/server-go/internal/service"
)

type AuthHandler struct {
	credService  *service.CredentialService
	guard        func(http.Handler) http.Handler
	loginLimit   func(http.Handler) http.Handler
	forgotLimit  func(http.Handler) http.Handler
	isProduction bool
}

func NewAuthHandler(
	credService *service.CredentialService,
	guard func(http.Handler) http.Handler,
	loginLimit func(http.Handler) http.Handler,
	forgotLimit func(http.Handler) http.Handler,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		credService:  credService,
		guard:        guard,
		loginLimit:   loginLimit,
		forgotLimit:  forgotLimit,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.Signup)
	r.With(h.loginLimit).Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.With(h.forgotLimit).Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.guard)
		r.Get("/me", h.Me)
		r.Patch("/password", h.ChangePassword)
		r.Delete("/me", h.DeleteAccount)
	})

	return r
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	account, err := h.credService.Signup(r.Context(), req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSignup, AccountID: account.ID})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account was successfully created",
		"account": formatAccount(account),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.credService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure, Email: req.Email})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, AccountID: result.Account.ID})
	middleware.SetSessionCookie(w, result.SessionToken, h.credService.SessionLifetime(), h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": formatAccount(result.Account),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout})
	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": formatAccount(account),
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	var req struct {
		CurrentPassword    string `json:"currentPassword"`
		NewPassword        string `json:"newPassword"`
		NewPasswordConfirm string `json:"newPasswordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.credService.ChangePassword(r.Context(), account.ID, req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPasswordChange, AccountID: account.ID})
	middleware.SetSessionCookie(w, result.SessionToken, h.credService.SessionLifetime(), h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password was successfully changed",
		"account": formatAccount(result.Account),
	})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.credService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventResetRequest, AccountID: result.AccountID})

	response := map[string]any{
		"message": "A password reset link was sent to your email",
	}
	if !result.EmailDelivered {
		response["warning"] = "Email delivery failed, please try again later"
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token              string `json:"token"`
		NewPassword        string `json:"newPassword"`
		NewPasswordConfirm string `json:"newPasswordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	account, err := h.credService.CompletePasswordReset(r.Context(), req.Token, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventResetFailure})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventResetComplete, AccountID: account.ID})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password was successfully reset, please log in",
	})
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeError(w, apperrors.Unauthenticated("Not authenticated"))
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.credService.DeleteAccount(r.Context(), account.ID, req.Password); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventAccountDelete, AccountID: account.ID})
	middleware.ClearSessionCookie(w)
	log.Info().Str("accountId", account.ID).Msg("account deletion handled")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
