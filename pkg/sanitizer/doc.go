// Package sanitizer normalizes user supplied catalog and account fields
// before validation and storage.
//
// All functions are idempotent: applying them twice gives the same result.
// Invalid input is never an error here; it is passed through so that the
// validators can reject it with a proper message.
//
// Normalization includes:
//   - Free text (names, titles, authors): trim and collapse inner whitespace
//   - Emails: trim and lowercase
//   - ISBNs: drop spaces and hyphens, uppercase the check digit X
//   - Genres and languages: trimmed lowercase keys
package sanitizer
