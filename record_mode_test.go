package grpcvcr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRecordModeWithoutCI(t *testing.T) {
	t.Setenv("CI", "")
	assert.Equal(t, NewEpisodes, DefaultRecordMode())
}

func TestDefaultRecordModeWithCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.Equal(t, None, DefaultRecordMode())
}

func TestCanRecordByMode(t *testing.T) {
	assert.True(t, All.canRecord())
	assert.True(t, NewEpisodes.canRecord())
	assert.True(t, Once.canRecord())
	assert.False(t, None.canRecord())
}
