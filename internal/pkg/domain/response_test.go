package domain

import (
	"testing"

	"github.com/matryer/is"
)

func TestEntryWithIDPreservesOtherFields(t *testing.T) {
	is := is.New(t)

	entry := Entry{"id": "a", "type": "structures"}
	rewritten := entry.WithID("D1/a")

	is.Equal(rewritten.ID(), "D1/a")
	is.Equal(rewritten["type"], "structures")
	is.Equal(entry.ID(), "a") // original is untouched
}

func TestEntryIDMissingReturnsEmpty(t *testing.T) {
	is := is.New(t)

	is.Equal(Entry{}.ID(), "")
}
