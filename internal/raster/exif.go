package raster

import (
	"math"
	"strconv"
	"strings"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// DefaultImageDPI is assumed for images without resolution metadata.
const DefaultImageDPI = 72

const (
	resolutionUnitInch       = 2
	resolutionUnitCentimeter = 3
)

// imageDPI reads XResolution and ResolutionUnit from embedded EXIF data.
func imageDPI(data []byte) int {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil || raw == nil {
		return DefaultImageDPI
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return DefaultImageDPI
	}

	var resolution float64
	unit := resolutionUnitInch
	for _, entry := range entries {
		// IFD1 describes the thumbnail.
		if strings.HasPrefix(entry.IfdPath, "IFD1") {
			continue
		}
		switch entry.TagName {
		case "XResolution":
			resolution = rationalValue(entry.Value, entry.Formatted)
		case "ResolutionUnit":
			if v, ok := shortValue(entry.Value, entry.Formatted); ok {
				unit = v
			}
		}
	}
	if resolution <= 0 || math.IsInf(resolution, 0) || math.IsNaN(resolution) {
		return DefaultImageDPI
	}
	if unit == resolutionUnitCentimeter {
		resolution *= 2.54
	}
	return int(math.Round(resolution))
}

func rationalValue(value any, formatted string) float64 {
	switch v := value.(type) {
	case []exifcommon.Rational:
		if len(v) > 0 && v[0].Denominator != 0 {
			return float64(v[0].Numerator) / float64(v[0].Denominator)
		}
	case exifcommon.Rational:
		if v.Denominator != 0 {
			return float64(v.Numerator) / float64(v.Denominator)
		}
	}
	num, den, ok := strings.Cut(strings.Trim(formatted, "[] "), "/")
	if !ok {
		return 0
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return 0
	}
	return n / d
}

func shortValue(value any, formatted string) (int, bool) {
	switch v := value.(type) {
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case uint16:
		return int(v), true
	}
	n, err := strconv.Atoi(strings.Trim(formatted, "[] "))
	if err != nil {
		return 0, false
	}
	return n, true
}
