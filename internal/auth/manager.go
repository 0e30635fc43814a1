// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trialportal/internal/cms"
)

// Storage persists the session record. Token and user are always written
// and cleared together.
type Storage interface {
	Load(ctx context.Context) (token string, user *User, err error)
	Save(ctx context.Context, token string, user User) error
	Clear(ctx context.Context) error
}

// Gateway sends a JSON POST to the CMS auth API.
type Gateway interface {
	PostAuth(ctx context.Context, endpoint, token string, body, out any) error
}

// RegisterInput is the registration form payload.
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone,omitempty"`
	BirthYear       string `json:"birth_year,omitempty"`
	Gender          string `json:"gender,omitempty"`
	City            string `json:"city,omitempty"`
	TherapeuticArea string `json:"therapeutic_area,omitempty"`
	InterestedPost  string `json:"interested_post,omitempty"`
}

// ProfileUpdate carries the profile fields to change. Empty fields are
// left as they are on the server.
type ProfileUpdate struct {
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	BirthYear       string `json:"birth_year,omitempty"`
	Gender          string `json:"gender,omitempty"`
	City            string `json:"city,omitempty"`
	SmokingStatus   string `json:"smoking_status,omitempty"`
	Conditions      string `json:"conditions,omitempty"`
	Medications     string `json:"medications,omitempty"`
	TherapeuticArea string `json:"therapeutic_area,omitempty"`
}

// Inquiry asks the clinical team to contact the visitor about a trial.
type Inquiry struct {
	PostID           int    `json:"post_id,omitempty"`
	TrialTitle       string `json:"trial_title,omitempty"`
	Message          string `json:"message"`
	Phone            string `json:"phone,omitempty"`
	PreferredContact string `json:"preferred_contact,omitempty"`
}

// authResponse is the body of register, login and validate.
type authResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Manager owns one visitor's session.
type Manager struct {
	gw    Gateway
	store Storage
	now   func() time.Time

	mu    sync.Mutex
	state State
	token string
	user  *User
}

// NewManager creates a manager in the Unknown state.
func NewManager(gw Gateway, store Storage) *Manager {
	return &Manager{gw: gw, store: store, now: time.Now, state: Unknown}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Login exchanges credentials for a session. identifier is a username or
// an email address.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*User, error) {
	body := map[string]string{"username": identifier, "password": password}
	return m.issue(ctx, "/login", body, msgLoginFailed)
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return m.issue(ctx, "/register", in, msgRegisterFailed)
}

func (m *Manager) issue(ctx context.Context, endpoint string, body any, fallback string) (*User, error) {
	var resp authResponse
	if err := m.gw.PostAuth(ctx, endpoint, "", body, &resp); err != nil {
		return nil, failure(err, fallback)
	}
	if resp.Token == "" || resp.User == nil {
		slog.Error("auth response missing token or user", "endpoint", endpoint,
			"has_token", resp.Token != "", "has_user", resp.User != nil)
		return nil, &Error{Message: msgGeneric, Err: ErrProtocol}
	}

	if err := m.store.Save(ctx, resp.Token, *resp.User); err != nil {
		slog.Error("persist session", "endpoint", endpoint, "error", err)
		return nil, &Error{Message: msgGeneric, Err: fmt.Errorf("persist session: %w", err)}
	}
	m.setAuthenticated(resp.Token, *resp.User)
	return m.User(), nil
}

// ValidateToken asks the CMS whether token is still valid and returns the
// user it belongs to.
func (m *Manager) ValidateToken(ctx context.Context, token string) (*User, error) {
	var resp authResponse
	if err := m.gw.PostAuth(ctx, "/validate", token, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("validate token: %w", ErrProtocol)
	}
	return resp.User, nil
}

// CheckAuthOnLoad resolves the Unknown state from the persisted session.
// A stored session is trusted only after the CMS validates its token; any
// failure clears it.
func (m *Manager) CheckAuthOnLoad(ctx context.Context) State {
	token, user, err := m.store.Load(ctx)
	if err != nil {
		slog.Warn("load session", "error", err)
		m.invalidate(ctx)
		return Unauthenticated
	}
	if token == "" || user == nil {
		m.setUnauthenticated()
		return Unauthenticated
	}

	if exp, ok := TokenExpiry(token); ok && !exp.After(m.now()) {
		slog.Debug("stored token expired", "exp", exp)
		m.invalidate(ctx)
		return Unauthenticated
	}

	confirmed, err := m.ValidateToken(ctx, token)
	if err != nil {
		slog.Info("session invalidated", "error", err)
		m.invalidate(ctx)
		return Unauthenticated
	}

	if err := m.store.Save(ctx, token, *confirmed); err != nil {
		slog.Warn("re-persist session", "error", err)
	}
	m.setAuthenticated(token, *confirmed)
	return Authenticated
}

// Logout clears the session. It is safe to call in any state.
func (m *Manager) Logout(ctx context.Context) error {
	m.setUnauthenticated()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// UpdateProfile sends the changed fields and stores the user the CMS
// returns.
func (m *Manager) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	token, ok := m.currentToken()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	var resp struct {
		User *User `json:"user"`
	}
	if err := m.gw.PostAuth(ctx, "/profile", token, upd, &resp); err != nil {
		m.dropIfRejected(ctx, err)
		return nil, failure(err, msgGeneric)
	}
	if resp.User == nil {
		slog.Error("profile response missing user")
		return nil, &Error{Message: msgGeneric, Err: ErrProtocol}
	}

	if err := m.store.Save(ctx, token, *resp.User); err != nil {
		slog.Error("persist profile", "error", err)
		return nil, &Error{Message: msgGeneric, Err: fmt.Errorf("persist session: %w", err)}
	}
	m.setAuthenticated(token, *resp.User)
	return m.User(), nil
}

// SubmitClinicalInquiry forwards an inquiry on behalf of the signed-in
// user.
func (m *Manager) SubmitClinicalInquiry(ctx context.Context, in Inquiry) error {
	token, ok := m.currentToken()
	if !ok {
		return ErrNotAuthenticated
	}
	if err := m.gw.PostAuth(ctx, "/clinical-inquiry", token, in, nil); err != nil {
		m.dropIfRejected(ctx, err)
		return failure(err, msgGeneric)
	}
	return nil
}

// TokenExpiry reads the exp claim of a JWT without verifying it. ok is
// false for opaque tokens and tokens without exp.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (m *Manager) currentToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated || m.token == "" {
		return "", false
	}
	return m.token, true
}

func (m *Manager) setAuthenticated(token string, u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Authenticated
	m.token = token
	m.user = &u
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Unauthenticated
	m.token = ""
	m.user = nil
}

func (m *Manager) invalidate(ctx context.Context) {
	m.setUnauthenticated()
	if err := m.store.Clear(ctx); err != nil {
		slog.Warn("clear invalid session", "error", err)
	}
}

// dropIfRejected ends the session when the CMS refuses the token.
func (m *Manager) dropIfRejected(ctx context.Context, err error) {
	var cerr *cms.Error
	if !errors.As(err, &cerr) || cerr.Kind != cms.KindStatus {
		return
	}
	if cerr.Status == http.StatusUnauthorized || cerr.Status == http.StatusForbidden {
		slog.Info("token rejected, signing out")
		m.invalidate(ctx)
	}
}

// failure turns a gateway error into a visitor-facing *Error. A CMS error
// message wins; transport failures get the generic text.
func failure(err error, fallback string) error {
	var cerr *cms.Error
	if !errors.As(err, &cerr) {
		return &Error{Message: msgGeneric, Err: err}
	}
	if cerr.Kind != cms.KindStatus {
		return &Error{Message: msgGeneric, Err: err}
	}
	if msg := cms.PlainText(cerr.Message); msg != "" {
		return &Error{Message: msg, Err: err}
	}
	return &Error{Message: fallback, Err: err}
}
