package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var reISBNSeparators = regexp.MustCompile(`[\s\-]+`)

func lower(s string) string {
	return strings.ToLower(s)
}

func NormalizeEmail(email string) string {
	return Pipeline{strings.TrimSpace, lower}.Apply(email)
}

// NormalizeISBN strips separators so "978-0-13-468599-1" and
// "9780134685991" are stored the same way.
func NormalizeISBN(isbn string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return reISBNSeparators.ReplaceAllString(s, "") },
		strings.ToUpper,
	}
	return p.Apply(isbn)
}

func NormalizeKey(s string) string {
	return Pipeline{TrimAndNormalize, lower}.Apply(s)
}

func NormalizeGenre(genre string) string {
	return NormalizeKey(genre)
}

func NormalizeLanguage(language string) string {
	return NormalizeKey(language)
}
