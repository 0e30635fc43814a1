// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug normalises category and post slugs taken from request paths
// before they are used as CMS lookups and cache keys.
package slug

import (
	"net/url"
	"regexp"
	"strings"
)

// MaxLength is the longest slug accepted from a URL.
const MaxLength = 200

// valid matches hyphen-separated runs of letters and digits in any script.
// The CMS keeps Cyrillic slugs, so ASCII-only matching is not enough.
var valid = regexp.MustCompile(`^[\p{Ll}\p{Lo}\p{N}]+(?:-[\p{Ll}\p{Lo}\p{N}]+)*$`)

// Normalize decodes a path segment, lowercases it and reports whether the
// result is a well-formed slug. Anything else can never match CMS content
// and is answered with 404 without a CMS call.
// Example: "Kardiologia" → "kardiologia", true; "%D0%9A%D0%B0" → "ка", true
func Normalize(s string) (string, bool) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", false
	}
	result := strings.ToLower(strings.TrimSpace(decoded))
	if result == "" || len(result) > MaxLength || !valid.MatchString(result) {
		return "", false
	}
	return result, true
}
