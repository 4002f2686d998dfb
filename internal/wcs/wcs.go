// Package wcs extracts a sky calibration from the world-coordinate-system
// artifact written by solve-field. The artifact is a FITS file with only a
// header: fixed 80-byte keyword cards in 2880-byte blocks, terminated by END.
package wcs

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/skyanchor/skyanchor/pkg/models"
)

const cardLen = 80

// Parse reads a WCS artifact and computes the image calibration: sky
// coordinates of the center pixel, the corner-derived field extent, and the
// rotation angle. Parse never fails hard — a malformed artifact yields a
// Calibration with nil geometry and the failure in Error, since a degraded
// solution is still a solved field.
func Parse(path string) *models.Calibration {
	data, err := os.ReadFile(path)
	if err != nil {
		return &models.Calibration{Error: fmt.Sprintf("reading wcs file: %v", err)}
	}

	header := parseHeader(data)

	tr, err := newTransform(header)
	if err != nil {
		return &models.Calibration{Error: err.Error()}
	}

	width, height, err := imageSize(header)
	if err != nil {
		return &models.Calibration{Error: err.Error()}
	}

	ra, dec := tr.pixelToWorld(width/2, height/2)

	corners := [4][2]float64{
		{0, 0},
		{width, 0},
		{width, height},
		{0, height},
	}
	minRA, maxRA := math.Inf(1), math.Inf(-1)
	minDec, maxDec := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		cra, cdec := tr.pixelToWorld(c[0], c[1])
		minRA = math.Min(minRA, cra)
		maxRA = math.Max(maxRA, cra)
		minDec = math.Min(minDec, cdec)
		maxDec = math.Max(maxDec, cdec)
	}

	// Bounding box of the reprojected corners. Not wrap-aware at RA 0/360
	// and approximate near the poles; downstream consumers expect these
	// exact values.
	fieldWidth := maxRA - minRA
	fieldHeight := maxDec - minDec

	// Rotation angle defaults to 0 when the header does not carry it.
	orientation := 0.0
	if v, ok := header["CROTA2"]; ok {
		orientation = v
	}

	return &models.Calibration{
		RA:          &ra,
		Dec:         &dec,
		FieldWidth:  &fieldWidth,
		FieldHeight: &fieldHeight,
		Orientation: &orientation,
	}
}

// parseHeader walks the 80-byte cards and collects numeric keyword values.
func parseHeader(data []byte) map[string]float64 {
	header := make(map[string]float64)
	for off := 0; off+cardLen <= len(data); off += cardLen {
		card := string(data[off : off+cardLen])

		keyword := strings.TrimSpace(card[:8])
		if keyword == "END" {
			break
		}
		if len(card) < 10 || card[8] != '=' {
			continue
		}

		value := card[10:]
		if slash := strings.IndexByte(value, '/'); slash >= 0 {
			value = value[:slash]
		}
		value = strings.TrimSpace(value)

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		header[keyword] = f
	}
	return header
}

func imageSize(header map[string]float64) (float64, float64, error) {
	// solve-field records the solved image dimensions as IMAGEW/IMAGEH;
	// plain FITS images carry NAXIS1/NAXIS2.
	w, wok := header["IMAGEW"]
	h, hok := header["IMAGEH"]
	if !wok || !hok {
		w, wok = header["NAXIS1"]
		h, hok = header["NAXIS2"]
	}
	if !wok || !hok || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("wcs header missing image dimensions")
	}
	return w, h, nil
}

// transform is a gnomonic (TAN) pixel-to-sky projection built from the
// reference pixel, reference coordinate, and linear CD matrix.
type transform struct {
	crpix1, crpix2 float64
	crval1, crval2 float64
	cd11, cd12     float64
	cd21, cd22     float64
}

func newTransform(header map[string]float64) (*transform, error) {
	tr := &transform{}

	var ok bool
	if tr.crpix1, ok = header["CRPIX1"]; !ok {
		return nil, fmt.Errorf("wcs header missing CRPIX1")
	}
	if tr.crpix2, ok = header["CRPIX2"]; !ok {
		return nil, fmt.Errorf("wcs header missing CRPIX2")
	}
	if tr.crval1, ok = header["CRVAL1"]; !ok {
		return nil, fmt.Errorf("wcs header missing CRVAL1")
	}
	if tr.crval2, ok = header["CRVAL2"]; !ok {
		return nil, fmt.Errorf("wcs header missing CRVAL2")
	}

	cd11, ok11 := header["CD1_1"]
	cd12, ok12 := header["CD1_2"]
	cd21, ok21 := header["CD2_1"]
	cd22, ok22 := header["CD2_2"]
	if ok11 && ok12 && ok21 && ok22 {
		tr.cd11, tr.cd12, tr.cd21, tr.cd22 = cd11, cd12, cd21, cd22
		return tr, nil
	}

	// Older headers encode scale and rotation as CDELT1/2 + CROTA2.
	cdelt1, d1ok := header["CDELT1"]
	cdelt2, d2ok := header["CDELT2"]
	if !d1ok || !d2ok {
		return nil, fmt.Errorf("wcs header missing CD matrix and CDELT scale")
	}
	rota := header["CROTA2"] * math.Pi / 180
	tr.cd11 = cdelt1 * math.Cos(rota)
	tr.cd12 = -cdelt2 * math.Sin(rota)
	tr.cd21 = cdelt1 * math.Sin(rota)
	tr.cd22 = cdelt2 * math.Cos(rota)
	return tr, nil
}

// pixelToWorld maps 0-based pixel coordinates to (RA, Dec) in degrees.
func (t *transform) pixelToWorld(px, py float64) (float64, float64) {
	// CRPIX is 1-based per the FITS convention.
	u := px - (t.crpix1 - 1)
	v := py - (t.crpix2 - 1)

	// Intermediate world coordinates in radians.
	xi := (t.cd11*u + t.cd12*v) * math.Pi / 180
	eta := (t.cd21*u + t.cd22*v) * math.Pi / 180

	ra0 := t.crval1 * math.Pi / 180
	dec0 := t.crval2 * math.Pi / 180

	// Gnomonic deprojection about the reference point.
	denom := math.Cos(dec0) - eta*math.Sin(dec0)
	ra := ra0 + math.Atan2(xi, denom)
	dec := math.Atan2(math.Sin(dec0)+eta*math.Cos(dec0), math.Hypot(xi, denom))

	raDeg := math.Mod(ra*180/math.Pi, 360)
	if raDeg < 0 {
		raDeg += 360
	}
	return raDeg, dec * 180 / math.Pi
}
