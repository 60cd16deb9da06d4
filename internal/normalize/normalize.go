// Package normalize holds the sanitisers applied to user input before it is
// validated and stored.
package normalize

import (
	"html"
	"strings"
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Text trims free-form input and escapes HTML metacharacters so stored
// values are safe to render back into a page.
func Text(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// Gender lower-cases the gender value; the accepted set is case-insensitive.
func Gender(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}
