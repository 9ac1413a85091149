package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type authData struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type tokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type profileData struct {
	UserID         int64      `json:"user_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PhoneNumber    string     `json:"phone_number"`
	IPAddress      *string    `json:"ip_address"`
	LoginMethod    string     `json:"login_method"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ActiveSessions int        `json:"active_sessions"`
	LastLogin      *time.Time `json:"last_login"`
}

type sessionData struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	LoginMethod string     `json:"login_method"`
	IPAddress   *string    `json:"ip_address"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LoggedOutAt *time.Time `json:"logged_out_at"`
}

func newSessionData(r *models.LoginRecord) sessionData {
	return sessionData{
		ID:          r.ID,
		UserID:      r.UserID,
		Username:    r.Username,
		Email:       r.Email,
		LoginMethod: r.LoginMethod,
		IPAddress:   r.IPAddress,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		LoggedOutAt: r.LoggedOutAt,
	}
}

func newAuthData(res *services.AuthResult) authData {
	return authData{
		UserID:       res.UserID,
		Username:     res.Username,
		Email:        res.Email,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
	}
}

// decodeBody reads a JSON request body into dst. It reports false after
// writing a validation error response.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	msg := "malformed JSON body"
	if errors.Is(err, io.EOF) {
		msg = "request body is empty"
	}
	writeValidationError(w, []FieldError{{Field: "body", Message: msg}})
	return false
}

func writeValidationError(w http.ResponseWriter, details []FieldError) {
	e := common.ErrValidation
	writeError(w, statusFor(e.Kind), e.Code, e.Message, details)
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}

func (s *HTTPServer) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	res, err := s.auth.Signup(r.Context(), services.SignupInput{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		LoginMethod: req.LoginMethod,
		ClientIP:    clientIP(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User created successfully", newAuthData(res))
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	res, err := s.auth.Login(r.Context(), services.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		LoginMethod: req.LoginMethod,
		ClientIP:    clientIP(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", newAuthData(res))
}

func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ParseBearer(r.Header.Get(common.AuthorizationHeaderName))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pair, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Tokens refreshed successfully", tokenData{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	closed, err := s.auth.Logout(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Successfully logged out", map[string]int64{"sessions_closed": closed})
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	p, err := s.auth.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User data retrieved successfully", profileData{
		UserID:         p.UserID,
		Username:       p.Username,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		IPAddress:      p.IPAddress,
		LoginMethod:    p.LoginMethod,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		ActiveSessions: p.ActiveSessions,
		LastLogin:      p.LastLogin,
	})
}

func (s *HTTPServer) listSessions(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = n
	}

	records, err := s.auth.ListSessions(r.Context(), identity.UserID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]sessionData, 0, len(records))
	for _, rec := range records {
		out = append(out, newSessionData(rec))
	}
	writeSuccess(w, http.StatusOK, "Sessions retrieved successfully", map[string]any{"sessions": out})
}

func (s *HTTPServer) setSessionStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeValidationError(w, []FieldError{{Field: "id", Message: "must be an integer"}})
		return
	}

	var req sessionStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	rec, err := s.auth.SetSessionStatus(r.Context(), identity.UserID, id, *req.IsActive, req.IPAddress)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Session updated successfully", newSessionData(rec))
}
