// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"trialportal/internal/auth"
	"trialportal/internal/cms"
	"trialportal/internal/middleware"
	"trialportal/internal/render"
	"trialportal/internal/slug"
)

// ServiceLister lists therapeutic areas for the registration form.
type ServiceLister interface {
	Services(ctx context.Context) ([]cms.Service, error)
}

// Auth groups the sign-in, registration, profile and inquiry handlers.
// Every handler works through the request's auth.Manager, which the
// ResolveSession middleware has already resolved.
type Auth struct {
	renderer *render.Renderer
	services ServiceLister
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, services ServiceLister) *Auth {
	return &Auth{renderer: renderer, services: services}
}

// LoginPage renders the login form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	next := safeNext(r.URL.Query().Get("next"))
	if m.State() == auth.Authenticated {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "login", &render.PageData{
		Title: "Вход",
		Data:  map[string]any{"Next": next, "Errors": map[string]string(nil)},
	})
}

// LoginSubmit processes the login form.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	identifier := strings.TrimSpace(r.FormValue("identifier"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	data := map[string]any{"Next": next, "Identifier": identifier}

	if errs := validateLogin(identifier, password); len(errs) > 0 {
		data["Errors"] = errs
		a.renderer.PageStatus(w, r, http.StatusUnprocessableEntity, "login", &render.PageData{Title: "Вход", Data: data})
		return
	}

	if _, err := m.Login(r.Context(), identifier, password); err != nil {
		slog.Info("login failed", "error", err, "request_id", middleware.RequestIDFromCtx(r.Context()))
		data["Errors"] = map[string]string(nil)
		data["Error"] = auth.Message(err)
		a.renderer.PageStatus(w, r, http.StatusUnauthorized, "login", &render.PageData{Title: "Вход", Data: data})
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

// RegisterPage renders the registration form. ?post=<slug> records the
// trial the visitor came from.
func (a *Auth) RegisterPage(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	next := safeNext(r.URL.Query().Get("next"))
	if m.State() == auth.Authenticated {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	var form auth.RegisterInput
	if s, ok := slug.Normalize(r.URL.Query().Get("post")); ok {
		form.InterestedPost = s
		if next == "/" {
			next = "/posts/" + s
		}
	}

	a.renderRegister(w, r, http.StatusOK, form, next, nil, "")
}

// RegisterSubmit processes the registration form.
func (a *Auth) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	next := safeNext(r.FormValue("next"))

	in := auth.RegisterInput{
		Username:        strings.TrimSpace(r.FormValue("username")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		Password:        r.FormValue("password"),
		FirstName:       strings.TrimSpace(r.FormValue("first_name")),
		LastName:        strings.TrimSpace(r.FormValue("last_name")),
		Phone:           strings.TrimSpace(r.FormValue("phone")),
		BirthYear:       strings.TrimSpace(r.FormValue("birth_year")),
		Gender:          r.FormValue("gender"),
		City:            strings.TrimSpace(r.FormValue("city")),
		TherapeuticArea: strings.TrimSpace(r.FormValue("therapeutic_area")),
		InterestedPost:  strings.TrimSpace(r.FormValue("interested_post")),
	}

	if errs := validateRegistration(in, r.FormValue("password_confirm")); len(errs) > 0 {
		in.Password = ""
		a.renderRegister(w, r, http.StatusUnprocessableEntity, in, next, errs, "")
		return
	}

	if _, err := m.Register(r.Context(), in); err != nil {
		slog.Info("registration failed", "error", err, "request_id", middleware.RequestIDFromCtx(r.Context()))
		in.Password = ""
		a.renderRegister(w, r, http.StatusBadRequest, in, next, nil, auth.Message(err))
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (a *Auth) renderRegister(w http.ResponseWriter, r *http.Request, status int, form auth.RegisterInput, next string, errs map[string]string, msg string) {
	services, err := a.services.Services(r.Context())
	if err != nil {
		services = nil
	}
	data := map[string]any{
		"Form":     form,
		"Next":     next,
		"Errors":   errs,
		"Services": services,
	}
	if msg != "" {
		data["Error"] = msg
	}
	a.renderer.PageStatus(w, r, status, "register", &render.PageData{Title: "Регистрация", Data: data})
}

// Logout ends the session and returns to the home page.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	if err := m.Logout(r.Context()); err != nil {
		slog.Warn("logout", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ProfilePage shows the signed-in visitor's profile form.
func (a *Auth) ProfilePage(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	user := m.User()
	if user == nil {
		http.Redirect(w, r, loginURL("/profile"), http.StatusSeeOther)
		return
	}
	a.renderProfile(w, r, http.StatusOK, *user, nil, "", nil)
}

// ProfileSubmit sends the changed profile fields to the CMS.
func (a *Auth) ProfileSubmit(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}
	current := m.User()
	if current == nil {
		http.Redirect(w, r, loginURL("/profile"), http.StatusSeeOther)
		return
	}

	upd := auth.ProfileUpdate{
		FirstName:       strings.TrimSpace(r.FormValue("first_name")),
		LastName:        strings.TrimSpace(r.FormValue("last_name")),
		Phone:           strings.TrimSpace(r.FormValue("phone")),
		BirthYear:       strings.TrimSpace(r.FormValue("birth_year")),
		Gender:          r.FormValue("gender"),
		City:            strings.TrimSpace(r.FormValue("city")),
		SmokingStatus:   r.FormValue("smoking_status"),
		Conditions:      strings.TrimSpace(r.FormValue("conditions")),
		Medications:     strings.TrimSpace(r.FormValue("medications")),
		TherapeuticArea: strings.TrimSpace(r.FormValue("therapeutic_area")),
	}
	// The form echoes what was submitted when it is shown again.
	form := *current
	form.FirstName, form.LastName, form.Phone = upd.FirstName, upd.LastName, upd.Phone
	form.BirthYear, form.Gender, form.City = upd.BirthYear, upd.Gender, upd.City
	form.SmokingStatus, form.Conditions, form.Medications = upd.SmokingStatus, upd.Conditions, upd.Medications
	form.TherapeuticArea = upd.TherapeuticArea

	if errs := validateProfile(upd); len(errs) > 0 {
		a.renderProfile(w, r, http.StatusUnprocessableEntity, form, errs, "", nil)
		return
	}

	user, err := m.UpdateProfile(r.Context(), upd)
	if err != nil {
		if m.State() != auth.Authenticated {
			// The CMS rejected the token; the session is gone.
			http.Redirect(w, r, loginURL("/profile"), http.StatusSeeOther)
			return
		}
		slog.Warn("profile update failed", "error", err)
		a.renderProfile(w, r, http.StatusBadGateway, form, nil, auth.Message(err), nil)
		return
	}

	a.renderProfile(w, r, http.StatusOK, *user, nil, "", []render.Flash{
		{Type: "success", Message: "Профилът е обновен."},
	})
}

func (a *Auth) renderProfile(w http.ResponseWriter, r *http.Request, status int, form auth.User, errs map[string]string, msg string, flashes []render.Flash) {
	data := map[string]any{"Form": form, "Errors": errs}
	if msg != "" {
		data["Error"] = msg
	}
	a.renderer.PageStatus(w, r, status, "profile", &render.PageData{
		Title:   "Моят профил",
		Section: "profile",
		Data:    data,
		Flashes: flashes,
	})
}

// Inquiry submits a clinical-trial inquiry from the protected block of a
// post and answers with the updated inquiry form.
func (a *Auth) Inquiry(w http.ResponseWriter, r *http.Request) {
	m, ok := managerOrFail(w, r)
	if !ok {
		return
	}

	postID, _ := strconv.Atoi(r.FormValue("post_id"))
	view := inquiryView{
		PostID:           postID,
		TrialTitle:       strings.TrimSpace(r.FormValue("trial_title")),
		Message:          strings.TrimSpace(r.FormValue("message")),
		Phone:            strings.TrimSpace(r.FormValue("phone")),
		PreferredContact: r.FormValue("preferred_contact"),
		CSRFToken:        csrfToken(r),
	}

	if errs := validateInquiry(view.Message, view.Phone, view.PreferredContact); len(errs) > 0 {
		view.Errors = errs
		a.renderer.Partial(w, "inquiry_form", view)
		return
	}

	err := m.SubmitClinicalInquiry(r.Context(), auth.Inquiry{
		PostID:           view.PostID,
		TrialTitle:       view.TrialTitle,
		Message:          view.Message,
		Phone:            view.Phone,
		PreferredContact: view.PreferredContact,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) || m.State() != auth.Authenticated {
			w.Header().Set("HX-Redirect", loginURL(r.Header.Get("HX-Current-URL")))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		slog.Warn("inquiry failed", "post_id", view.PostID, "error", err)
		view.Error = auth.Message(err)
		a.renderer.Partial(w, "inquiry_form", view)
		return
	}

	view.Sent = true
	a.renderer.Partial(w, "inquiry_form", view)
}

// managerOrFail returns the request's auth manager. A route wired without
// ResolveSession is a programming error and answers 500.
func managerOrFail(w http.ResponseWriter, r *http.Request) (*auth.Manager, bool) {
	m := middleware.ManagerFromCtx(r.Context())
	if m == nil {
		slog.Error("route without session resolution", "path", r.URL.Path)
		http.Error(w, "Възникна вътрешна грешка.", http.StatusInternalServerError)
		return nil, false
	}
	return m, true
}

func csrfToken(r *http.Request) string {
	return middleware.CSRFTokenFromCtx(r.Context())
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// loginURL links to the login page returning to next afterwards.
func loginURL(next string) string {
	next = safeNext(next)
	if next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// safeNext keeps post-login redirects on this site. Anything that is not a
// local absolute path becomes "/".
func safeNext(next string) string {
	if u, err := url.Parse(next); err == nil && u.IsAbs() {
		// HX-Current-URL is absolute; keep only its path and query.
		next = u.RequestURI()
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
