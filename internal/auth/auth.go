// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package auth manages the visitor's CMS session: login, registration,
// token validation on load, logout and the authenticated-only profile and
// clinical-inquiry calls.
//
// A Manager is the only writer of the persisted session. Every transition
// into Authenticated carries a user object confirmed by the CMS.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// User-facing failure messages.
const (
	msgLoginFailed    = "Грешно потребителско име или парола."
	msgRegisterFailed = "Регистрацията не беше успешна. Моля, опитайте отново."
	msgGeneric        = "Възникна грешка. Моля, опитайте отново по-късно."
)

var (
	// ErrNotAuthenticated is returned by operations that need a session
	// when there is none. No request is sent in that case.
	ErrNotAuthenticated = errors.New("auth: not authenticated")

	// ErrProtocol marks a 2xx auth response without the fields it must carry.
	ErrProtocol = errors.New("auth: malformed response")
)

// State is the session state as seen by renderers.
type State int

const (
	// Unknown means the stored session has not been checked yet.
	Unknown State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// User is the CMS account profile.
type User struct {
	ID               int    `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	BirthYear        string `json:"birth_year"`
	Gender           string `json:"gender"`
	City             string `json:"city"`
	SmokingStatus    string `json:"smoking_status"`
	Conditions       string `json:"conditions"`
	Medications      string `json:"medications"`
	TherapeuticArea  string `json:"therapeutic_area"`
	ProfileCompleted bool   `json:"profile_completed"`
}

// DisplayName is the full name, or the username when no name is set.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Error is a failed auth operation. Message is safe to show to the
// visitor; Err is the underlying cause for logs.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the visitor-facing text for err.
func Message(err error) string {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Message
	}
	return msgGeneric
}
