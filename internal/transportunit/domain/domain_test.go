package transportunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-core/internal/apperr"
)

func TestParseDeletionMode(t *testing.T) {
	mode, err := ParseDeletionMode("on_accept")
	require.NoError(t, err)
	assert.Equal(t, DeletionOnAccept, mode)

	_, err = ParseDeletionMode("LATER")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	assert.Equal(t, apperr.CodeDeletionModeUnknown, apperr.CodeOf(err))
}

func TestBusinessKey(t *testing.T) {
	key, ok := BusinessKey([]SearchAttribute{{Key: "weight", Value: "10"}, {Key: SearchKeyBusinessKey, Value: " 4711 "}})
	assert.True(t, ok)
	assert.Equal(t, "4711", key)

	_, ok = BusinessKey([]SearchAttribute{{Key: "weight", Value: "10"}})
	assert.False(t, ok)
	assert.Error(t, SearchAttribute{}.Validate())
}

func TestNormalizeBarcode(t *testing.T) {
	barcode, err := NormalizeBarcode(" 00001 ")
	require.NoError(t, err)
	assert.Equal(t, "00001", barcode)
	_, err = NormalizeBarcode("  ")
	assert.ErrorIs(t, err, ErrBarcodeInvalid)
}
