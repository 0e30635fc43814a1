// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package session

import (
	"context"
	"net/http"

	"trialportal/internal/auth"
)

// Binding is the session of one HTTP exchange. It implements auth.Storage
// so an auth.Manager can read and write the visitor's session without
// knowing about cookies.
type Binding struct {
	store *Store
	w     http.ResponseWriter
	id    string // current session ID, "" when there is none
}

var _ auth.Storage = (*Binding)(nil)

// Bind ties the store to a request and its response.
func (s *Store) Bind(w http.ResponseWriter, r *http.Request) *Binding {
	b := &Binding{store: s, w: w}
	if c, err := r.Cookie(CookieName); err == nil {
		b.id = c.Value
	}
	return b
}

// Load returns the stored token and user, or empty values when there is
// no session.
func (b *Binding) Load(ctx context.Context) (string, *auth.User, error) {
	if b.id == "" {
		return "", nil, nil
	}
	data, err := b.store.load(ctx, b.id)
	if err != nil || data == nil {
		return "", nil, err
	}
	u := data.User
	return data.Token, &u, nil
}

// Save writes token and user together. A new token starts a new session
// ID so a session cookie is never reused across sign-ins.
func (b *Binding) Save(ctx context.Context, token string, user auth.User) error {
	if b.id != "" {
		current, err := b.store.load(ctx, b.id)
		if err != nil {
			return err
		}
		if current != nil && current.Token == token {
			current.User = user
			return b.store.put(ctx, b.id, current, b.store.ttlFor(token))
		}
		if err := b.store.destroy(ctx, b.w, b.id); err != nil {
			return err
		}
		b.id = ""
	}

	id, err := b.store.Create(ctx, b.w, &Data{Token: token, User: user})
	if err != nil {
		return err
	}
	b.id = id
	return nil
}

// Clear removes the session and expires the cookie.
func (b *Binding) Clear(ctx context.Context) error {
	if b.id == "" {
		return nil
	}
	err := b.store.destroy(ctx, b.w, b.id)
	b.id = ""
	return err
}

// ID returns the current session ID.
func (b *Binding) ID() string {
	return b.id
}
