package grpcvcr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCassetteWriteFailureUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := &CassetteWriteFailureError{Path: "x.yaml", Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestSerializationFailureUnwraps(t *testing.T) {
	cause := fmt.Errorf("bad yaml")
	err := &SerializationFailureError{Message: "parse", Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestErrorTypesImplementMarkerInterface(t *testing.T) {
	var errs []error = []error{
		&CassetteNotFoundError{Path: "x"},
		&NoMatchingInteractionError{Method: "/a/B"},
		&RecordingDisabledError{Method: "/a/B"},
		&CassetteWriteFailureError{Path: "x"},
		&SerializationFailureError{Message: "m"},
	}
	for _, err := range errs {
		var marker Error
		assert.True(t, errors.As(err, &marker), "%T should satisfy Error", err)
	}
}
