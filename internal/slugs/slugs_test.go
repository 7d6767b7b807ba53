package slugs

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var slugShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*-[0-9a-f]{8}$`)

func TestSlugify(t *testing.T) {
	slug := Slugify("Launch Checklist")
	assert.True(t, slugShape.MatchString(slug), slug)
	assert.Contains(t, slug, "launch-checklist-")

	// Runs of punctuation and spaces collapse to single hyphens.
	slug = Slugify("  Q3 -- Website / Revamp!! ")
	assert.Contains(t, slug, "q3-website-revamp-")
	assert.True(t, slugShape.MatchString(slug), slug)

	// Names with no usable characters still produce a slug.
	slug = Slugify("!!!")
	assert.Contains(t, slug, "untitled-")
	assert.True(t, slugShape.MatchString(slug), slug)
}

func TestSlugifyIsRandomised(t *testing.T) {
	assert.NotEqual(t, Slugify("Acme"), Slugify("Acme"))
}

func TestCreateWithSlugRetriesOnDuplicate(t *testing.T) {
	var seen []string

	err := CreateWithSlug("Acme", func(slug string) error {
		seen = append(seen, slug)
		if len(seen) < 3 {
			return gorm.ErrDuplicatedKey
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)

	// Each attempt gets a fresh suffix.
	assert.NotEqual(t, seen[0], seen[1])
	assert.NotEqual(t, seen[1], seen[2])
}

func TestCreateWithSlugGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0

	err := CreateWithSlug("Acme", func(slug string) error {
		calls++
		return gorm.ErrDuplicatedKey
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, maxAttempts, calls)
}

func TestCreateWithSlugStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("connection lost")
	calls := 0

	err := CreateWithSlug("Acme", func(slug string) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
