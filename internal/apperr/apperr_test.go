package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(KindNotFound, CodeLocationNotFound, "location: not found")
	detailed := sentinel.With("location_id", "L-1")

	assert.True(t, errors.Is(detailed, sentinel))
	assert.True(t, errors.Is(fmt.Errorf("lookup: %w", detailed), sentinel))
	assert.False(t, errors.Is(detailed, New(KindNotFound, CodeTransportUnitNotFound, "tu: not found")))
	assert.Empty(t, sentinel.Metadata)
}

func TestKindAndCodeOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindAlreadyReserved, CodeTransportUnitReserved, "reserved"))

	assert.Equal(t, KindAlreadyReserved, KindOf(err))
	assert.Equal(t, CodeTransportUnitReserved, CodeOf(err))
	assert.True(t, IsKind(err, KindAlreadyReserved))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestErrorMessageIncludesMetadataAndCause(t *testing.T) {
	err := New(KindInvalidArgument, CodeErrorCodeInvalid, "location: invalid error code").
		With("code", "12").
		Because(errors.New("length 2"))

	assert.Equal(t, "location: invalid error code code=12: length 2", err.Error())
	assert.Equal(t, http.StatusBadRequest, KindOf(err).HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindStateChangeRejected.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindConfiguration.HTTPStatus())
}
