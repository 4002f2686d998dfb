package wcs_test

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/skyanchor/skyanchor/internal/wcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(key, value string) string {
	return fmt.Sprintf("%-8s= %-70s", key, value)[:80]
}

func endCard() string {
	return fmt.Sprintf("%-80s", "END")
}

// writeWCS writes a minimal header-only FITS file from keyword cards.
func writeWCS(t *testing.T, cards ...string) string {
	t.Helper()
	var data []byte
	for _, c := range cards {
		data = append(data, []byte(c)...)
	}
	data = append(data, []byte(endCard())...)
	// Pad to a full 2880-byte block as FITS writers do.
	for len(data)%2880 != 0 {
		data = append(data, ' ')
	}

	path := filepath.Join(t.TempDir(), "output.wcs")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func tanHeader() []string {
	return []string{
		card("SIMPLE", "T"),
		card("BITPIX", "8"),
		card("NAXIS", "0"),
		card("CRPIX1", "257.0"),
		card("CRPIX2", "257.0"),
		card("CRVAL1", "10.0"),
		card("CRVAL2", "20.0"),
		card("CD1_1", "0.001"),
		card("CD1_2", "0.0"),
		card("CD2_1", "0.0"),
		card("CD2_2", "0.001"),
		card("IMAGEW", "512"),
		card("IMAGEH", "512"),
	}
}

func TestParse_CenterCoordinates(t *testing.T) {
	path := writeWCS(t, tanHeader()...)

	cal := wcs.Parse(path)

	require.Empty(t, cal.Error)
	require.NotNil(t, cal.RA)
	require.NotNil(t, cal.Dec)
	// Center pixel (256, 256) 0-based is the reference pixel exactly.
	assert.InDelta(t, 10.0, *cal.RA, 1e-6)
	assert.InDelta(t, 20.0, *cal.Dec, 1e-6)
}

func TestParse_FieldExtent(t *testing.T) {
	path := writeWCS(t, tanHeader()...)

	cal := wcs.Parse(path)

	require.Empty(t, cal.Error)
	require.NotNil(t, cal.FieldWidth)
	require.NotNil(t, cal.FieldHeight)

	// 512 px at 0.001 deg/px spans ~0.512 deg; RA widens by 1/cos(dec).
	expectedWidth := 0.512 / math.Cos(20*math.Pi/180)
	assert.InDelta(t, expectedWidth, *cal.FieldWidth, 0.01)
	assert.InDelta(t, 0.512, *cal.FieldHeight, 0.05)
}

func TestParse_OrientationDefaultsToZero(t *testing.T) {
	path := writeWCS(t, tanHeader()...)

	cal := wcs.Parse(path)

	require.NotNil(t, cal.Orientation)
	assert.Equal(t, 0.0, *cal.Orientation)
}

func TestParse_OrientationFromHeader(t *testing.T) {
	cards := append(tanHeader(), card("CROTA2", "45.5"))
	path := writeWCS(t, cards...)

	cal := wcs.Parse(path)

	require.NotNil(t, cal.Orientation)
	assert.InDelta(t, 45.5, *cal.Orientation, 1e-9)
}

func TestParse_NAXISFallbackForImageSize(t *testing.T) {
	cards := []string{
		card("CRPIX1", "257.0"),
		card("CRPIX2", "257.0"),
		card("CRVAL1", "10.0"),
		card("CRVAL2", "20.0"),
		card("CD1_1", "0.001"),
		card("CD1_2", "0.0"),
		card("CD2_1", "0.0"),
		card("CD2_2", "0.001"),
		card("NAXIS1", "512"),
		card("NAXIS2", "512"),
	}
	path := writeWCS(t, cards...)

	cal := wcs.Parse(path)

	require.Empty(t, cal.Error)
	assert.InDelta(t, 10.0, *cal.RA, 1e-6)
}

func TestParse_CDELTFallback(t *testing.T) {
	cards := []string{
		card("CRPIX1", "257.0"),
		card("CRPIX2", "257.0"),
		card("CRVAL1", "10.0"),
		card("CRVAL2", "20.0"),
		card("CDELT1", "0.001"),
		card("CDELT2", "0.001"),
		card("IMAGEW", "512"),
		card("IMAGEH", "512"),
	}
	path := writeWCS(t, cards...)

	cal := wcs.Parse(path)

	require.Empty(t, cal.Error)
	assert.InDelta(t, 10.0, *cal.RA, 1e-6)
	assert.InDelta(t, 20.0, *cal.Dec, 1e-6)
}

func TestParse_MissingCoordinateHeadersDegrades(t *testing.T) {
	cards := []string{
		card("SIMPLE", "T"),
		card("IMAGEW", "512"),
		card("IMAGEH", "512"),
	}
	path := writeWCS(t, cards...)

	cal := wcs.Parse(path)

	assert.Nil(t, cal.RA)
	assert.Nil(t, cal.Dec)
	assert.Nil(t, cal.FieldWidth)
	assert.Nil(t, cal.FieldHeight)
	assert.NotEmpty(t, cal.Error)
	assert.True(t, cal.Degraded())
}

func TestParse_MissingImageSizeDegrades(t *testing.T) {
	cards := []string{
		card("CRPIX1", "1.0"),
		card("CRPIX2", "1.0"),
		card("CRVAL1", "0.0"),
		card("CRVAL2", "0.0"),
		card("CD1_1", "0.001"),
		card("CD1_2", "0.0"),
		card("CD2_1", "0.0"),
		card("CD2_2", "0.001"),
	}
	path := writeWCS(t, cards...)

	cal := wcs.Parse(path)

	assert.Nil(t, cal.RA)
	assert.NotEmpty(t, cal.Error)
}

func TestParse_UnreadableFileDegrades(t *testing.T) {
	cal := wcs.Parse(filepath.Join(t.TempDir(), "missing.wcs"))

	assert.Nil(t, cal.RA)
	assert.NotEmpty(t, cal.Error)
}

func TestParse_RANormalizedToPositive(t *testing.T) {
	cards := []string{
		card("CRPIX1", "257.0"),
		card("CRPIX2", "257.0"),
		card("CRVAL1", "0.1"),
		card("CRVAL2", "0.0"),
		card("CD1_1", "0.001"),
		card("CD1_2", "0.0"),
		card("CD2_1", "0.0"),
		card("CD2_2", "0.001"),
		card("IMAGEW", "512"),
		card("IMAGEH", "512"),
	}
	path := writeWCS(t, cards...)

	cal := wcs.Parse(path)

	require.Empty(t, cal.Error)
	// The left edge crosses RA 0 and wraps to ~359.8; the naive corner
	// bounding box then spans nearly the whole circle.
	require.NotNil(t, cal.FieldWidth)
	assert.Greater(t, *cal.FieldWidth, 300.0)
}
