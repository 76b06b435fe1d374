package registry

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dotcommander/zjj/internal/models"
)

// nameShape is the base grammar: leading letter, then up to 62 letters,
// digits, underscores, or hyphens.
var nameShape = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,62}$`)

// shellMetacharacters bars names that would be dangerous if ever interpolated
// into a shell command, even though nothing in this codebase does that today.
const shellMetacharacters = ";|&$`<>(){}[]!*?~^\"'\\"

// bidiAndZeroWidth are Unicode codepoints that render invisibly or reorder
// visible text; none has any legitimate use in a workspace name.
var bidiAndZeroWidth = map[rune]bool{
	'​': true, // zero width space
	'‌': true, // zero width non-joiner
	'‍': true, // zero width joiner
	'﻿': true, // byte order mark
	'؜': true, // Arabic letter mark
	'‪': true, // LRE
	'‫': true, // RLE
	'‬': true, // PDF
	'‭': true, // LRO
	'‮': true, // RLO
	'⁦': true, // LRI
	'⁧': true, // RLI
	'⁨': true, // FSI
	'⁩': true, // PDI
}

// ValidateName is total: it never panics, for any input, and returns either
// nil or a *models.ValidationError. Checked in the order §3.1 lists the
// rejection categories in, so the first violation found is the one reported.
func ValidateName(name string) error {
	if name == "" {
		return &models.ValidationError{Field: "name", Message: "must not be empty", Constraints: "non-empty"}
	}
	if len(name) > 63 {
		return &models.ValidationError{Field: "name", Message: "must be at most 63 characters", Constraints: "len <= 63"}
	}
	if strings.HasPrefix(name, ".") {
		return &models.ValidationError{Field: "name", Message: "must not start with a dot", Constraints: "no leading dot"}
	}
	if strings.Contains(name, "..") {
		return &models.ValidationError{Field: "name", Message: "must not contain '..'", Constraints: "no path traversal"}
	}
	if strings.ContainsAny(name, "/\\") {
		return &models.ValidationError{Field: "name", Message: "must not contain a path separator", Constraints: "no '/' or '\\'"}
	}
	if strings.ContainsAny(name, shellMetacharacters) {
		return &models.ValidationError{Field: "name", Message: "must not contain shell metacharacters", Constraints: "no " + shellMetacharacters}
	}
	if lower := strings.ToLower(name); strings.Contains(lower, "%2e") || strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c") {
		return &models.ValidationError{Field: "name", Message: "must not contain URL-encoded path tokens", Constraints: "no %2e/%2f/%5c"}
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return &models.ValidationError{Field: "name", Message: "must not contain control characters", Constraints: "no control chars"}
		}
		if bidiAndZeroWidth[r] {
			return &models.ValidationError{Field: "name", Message: "must not contain zero-width or bidi override characters", Constraints: "no bidi/zero-width codepoints"}
		}
		if r > unicode.MaxASCII {
			return &models.ValidationError{Field: "name", Message: "must be ASCII", Constraints: "ASCII only"}
		}
	}
	if !nameShape.MatchString(name) {
		return &models.ValidationError{Field: "name", Message: "must match ^[A-Za-z][A-Za-z0-9_-]{0,62}$", Constraints: nameShape.String()}
	}
	return nil
}
