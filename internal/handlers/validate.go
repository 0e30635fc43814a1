// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"trialportal/internal/auth"
)

// Validation limits for the account and inquiry forms.
const (
	minUsernameLen = 3
	maxUsernameLen = 60
	maxNameLen     = 100
	maxEmailLen    = 254
	minPasswordLen = 8
	maxPasswordLen = 200
	maxFreeTextLen = 2_000
	maxMessageLen  = 5_000
	minBirthYear   = 1900
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)
)

// fieldErrors collects per-field validation messages keyed by form field.
type fieldErrors map[string]string

func (fe fieldErrors) add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// result returns nil when nothing failed, so callers can test len().
func (fe fieldErrors) result() map[string]string {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// validateLogin checks the login form before any request is sent.
func validateLogin(identifier, password string) map[string]string {
	fe := fieldErrors{}
	if strings.TrimSpace(identifier) == "" {
		fe.add("identifier", "Въведете потребителско име или имейл.")
	}
	if password == "" {
		fe.add("password", "Въведете парола.")
	}
	return fe.result()
}

// validateRegistration checks the registration form.
func validateRegistration(in auth.RegisterInput, confirm string) map[string]string {
	fe := fieldErrors{}

	switch n := utf8.RuneCountInString(in.Username); {
	case n == 0:
		fe.add("username", "Въведете потребителско име.")
	case n < minUsernameLen || n > maxUsernameLen:
		fe.add("username", "Потребителското име трябва да е между 3 и 60 символа.")
	case !usernamePattern.MatchString(in.Username):
		fe.add("username", "Използвайте само латински букви, цифри и . _ @ -")
	}

	if in.Email == "" {
		fe.add("email", "Въведете имейл адрес.")
	} else if !validEmail(in.Email) {
		fe.add("email", "Въведете валиден имейл адрес.")
	}

	checkName(fe, "first_name", in.FirstName, "Въведете име.")
	checkName(fe, "last_name", in.LastName, "Въведете фамилия.")

	switch n := utf8.RuneCountInString(in.Password); {
	case n == 0:
		fe.add("password", "Въведете парола.")
	case n < minPasswordLen:
		fe.add("password", "Паролата трябва да е поне 8 символа.")
	case n > maxPasswordLen:
		fe.add("password", "Паролата е твърде дълга.")
	}
	if confirm != in.Password {
		fe.add("password_confirm", "Паролите не съвпадат.")
	}

	checkPhone(fe, in.Phone)
	checkBirthYear(fe, in.BirthYear)
	checkGender(fe, in.Gender)
	return fe.result()
}

// validateProfile checks the optional profile fields.
func validateProfile(upd auth.ProfileUpdate) map[string]string {
	fe := fieldErrors{}
	if utf8.RuneCountInString(upd.FirstName) > maxNameLen {
		fe.add("first_name", "Името е твърде дълго.")
	}
	if utf8.RuneCountInString(upd.LastName) > maxNameLen {
		fe.add("last_name", "Фамилията е твърде дълга.")
	}
	checkPhone(fe, upd.Phone)
	checkBirthYear(fe, upd.BirthYear)
	checkGender(fe, upd.Gender)
	if utf8.RuneCountInString(upd.Conditions) > maxFreeTextLen {
		fe.add("conditions", "Текстът е твърде дълъг.")
	}
	if utf8.RuneCountInString(upd.Medications) > maxFreeTextLen {
		fe.add("medications", "Текстът е твърде дълъг.")
	}
	return fe.result()
}

// validateInquiry checks the clinical inquiry form.
func validateInquiry(message, phone, preferred string) map[string]string {
	fe := fieldErrors{}
	switch n := utf8.RuneCountInString(strings.TrimSpace(message)); {
	case n == 0:
		fe.add("message", "Напишете съобщение.")
	case n > maxMessageLen:
		fe.add("message", "Съобщението е твърде дълго.")
	}
	checkPhone(fe, phone)
	if preferred == "phone" && phone == "" {
		fe.add("phone", "Посочете телефон, за да се свържем по телефона.")
	}
	return fe.result()
}

func checkName(fe fieldErrors, field, value, missing string) {
	switch n := utf8.RuneCountInString(value); {
	case n == 0:
		fe.add(field, missing)
	case n > maxNameLen:
		fe.add(field, "Стойността е твърде дълга.")
	}
}

func checkPhone(fe fieldErrors, phone string) {
	if phone != "" && !phonePattern.MatchString(phone) {
		fe.add("phone", "Въведете валиден телефонен номер.")
	}
}

func checkBirthYear(fe fieldErrors, year string) {
	if year == "" {
		return
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < minBirthYear || y > time.Now().Year() {
		fe.add("birth_year", "Въведете валидна година на раждане.")
	}
}

// checkGender accepts the values of the gender select, or nothing.
func checkGender(fe fieldErrors, gender string) {
	switch gender {
	case "", "female", "male":
	default:
		fe.add("gender", "Изберете пол от списъка.")
	}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(s string) bool {
	if len(s) > maxEmailLen {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
