package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	assert.True(t, ValidTransition(StatusNew, StatusCollected))
	assert.True(t, ValidTransition(StatusCollected, StatusStructurallyFiltered))
	assert.True(t, ValidTransition(StatusCollected, StatusStructurallyRejected))
	assert.True(t, ValidTransition(StatusSemanticallyFiltered, StatusDuplicateOfCanonical))
	assert.True(t, ValidTransition(StatusMatchedToProfile, StatusNotified))

	// No skipping stages, no moving backwards, no leaving terminal states.
	assert.False(t, ValidTransition(StatusNew, StatusStructurallyFiltered))
	assert.False(t, ValidTransition(StatusCollected, StatusNew))
	assert.False(t, ValidTransition(StatusStructurallyRejected, StatusSemanticallyFiltered))
	assert.False(t, ValidTransition(StatusNotified, StatusNew))
	assert.False(t, ValidTransition(StatusNew, StatusNew))
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{
		StatusStructurallyRejected,
		StatusSemanticallyRejected,
		StatusDuplicateOfCanonical,
		StatusNotified,
	} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []Status{
		StatusNew, StatusCollected, StatusStructurallyFiltered,
		StatusSemanticallyFiltered, StatusDeduplicated, StatusMatchedToProfile,
	} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestCheckTransition(t *testing.T) {
	assert.NoError(t, CheckTransition(StatusNew, StatusCollected))
	err := CheckTransition(StatusNew, StatusNotified)
	assert.ErrorContains(t, err, "invalid status transition")
}
