package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (l loginRequest) identifier() string {
	for _, v := range []string{l.Identifier, l.Username, l.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         goAccount.UserView `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type meResponse struct {
	UserID         string         `json:"userId"`
	Role           goAccount.Role `json:"role"`
	ActiveSessions int            `json:"activeSessions"`
}

var errBadBody = errors.New("invalid request body")

// decode reads a JSON body into dst. An empty body is allowed when
// optional is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return errBadBody
}

func (h *Handler) badBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, nil, errBadBody.Error())
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, tokens goAccount.TokenPair) {
	now := h.now()
	h.cookies.set(w, accessCookieName, tokens.AccessToken, tokens.AccessExpiresAt, now)
	h.cookies.set(w, refreshCookieName, tokens.RefreshToken, tokens.RefreshExpiresAt, now)
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	h.cookies.clear(w, accessCookieName)
	h.cookies.clear(w, refreshCookieName)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := h.decode(w, r, &body, false); err != nil {
		h.badBody(w)
		return
	}

	user, err := h.svc.Register(r.Context(), goAccount.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
	})
	if err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user, "user registered")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := h.decode(w, r, &body, false); err != nil {
		h.badBody(w)
		return
	}

	res, err := h.svc.Login(r.Context(), body.identifier(), body.Password)
	if err != nil {
		h.reject(w, r, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "logged in")
}

// refresh prefers the cookie and falls back to the JSON body.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		var body refreshRequest
		if err := h.decode(w, r, &body, true); err != nil {
			h.badBody(w)
			return
		}
		token = body.RefreshToken
	}

	res, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		if goAccount.KindOf(err) == goAccount.KindInvalidToken {
			h.clearTokenCookies(w)
		}
		h.reject(w, r, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	}, "token refreshed")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.reject(w, r, goAccount.ErrUnauthenticated)
		return
	}
	if err := h.svc.Logout(r.Context(), auth.UserID); err != nil {
		h.reject(w, r, err)
		return
	}
	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, nil, "logged out")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		h.reject(w, r, goAccount.ErrUnauthenticated)
		return
	}
	n, err := h.svc.ActiveSessionCount(r.Context(), auth.UserID)
	if err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{UserID: auth.UserID, Role: auth.Role, ActiveSessions: n}, "ok")
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := h.decode(w, r, &body, false); err != nil {
		h.badBody(w)
		return
	}

	res, err := h.svc.RequestResetCode(r.Context(), body.Email)
	if err != nil {
		h.reject(w, r, err)
		return
	}

	msg := "reset code sent"
	if res.DeliveryWarning != nil {
		h.logger.WarnContext(r.Context(), "reset code delivery failed", "error", res.DeliveryWarning)
		msg = "reset code issued but could not be delivered"
	}
	writeJSON(w, http.StatusOK, map[string]any{"expiresAt": res.ExpiresAt}, msg)
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var body verifyCodeRequest
	if err := h.decode(w, r, &body, false); err != nil {
		h.badBody(w)
		return
	}
	if err := h.svc.VerifyResetCode(r.Context(), body.Email, body.Code); err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil, "code verified")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if err := h.decode(w, r, &body, false); err != nil {
		h.badBody(w)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), body.Email, body.Code, body.Password); err != nil {
		h.reject(w, r, err)
		return
	}
	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, nil, "password reset")
}

func (h *Handler) adminSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	sessions, err := h.svc.ListSessions(r.Context(), userID)
	if err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":         userID,
		"activeSessions": len(sessions),
		"sessions":       sessions,
	}, "ok")
}

func (h *Handler) adminRevoke(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if err := h.svc.Logout(r.Context(), userID); err != nil {
		h.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": userID}, "sessions revoked")
}
