// Package slugs generates the unique, URL-safe identifiers used by
// teams, projects and milestones.
package slugs

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Each slug carries an 8-hex-char random suffix, so a collision requires
// both an identical base and an identical suffix (~1 in 4 billion). A
// small retry loop absorbs the residual chance.
const maxAttempts = 3

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the name, collapses non-word runs to single hyphens
// and appends a random suffix.
func Slugify(name string) string {
	base := strings.Trim(nonWord.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "untitled"
	}
	return base + "-" + uuid.NewString()[:8]
}

// CreateWithSlug invokes create with fresh slugs until the insert stops
// failing on the slug unique constraint, up to maxAttempts.
func CreateWithSlug(name string, create func(slug string) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = create(Slugify(name))
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}
