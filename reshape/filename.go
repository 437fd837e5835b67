package reshape

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTokenCount is returned for source names too short to carry the
// product_date pattern the naming convention expects.
var ErrTokenCount = errors.New("name needs at least 3 delimited tokens")

// DeriveStem turns a source granule name into the output stem: any
// directory prefix goes, the name is split on underscores, spaces and
// periods, the extension token is dropped, the two trailing tokens (a
// split year/month date) are merged, and the remainder is joined back
// with underscores.
//
//	co2flux_2021_01.nc -> co2flux_202101
func DeriveStem(name string) (string, error) {
	base := name[strings.LastIndexByte(name, '/')+1:]
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == ' ' || r == '.'
	})
	if len(tokens) < 3 {
		return "", fmt.Errorf("%q: %w", name, ErrTokenCount)
	}
	tokens = tokens[:len(tokens)-1]
	merged := tokens[len(tokens)-2] + tokens[len(tokens)-1]
	tokens = append(tokens[:len(tokens)-2], merged)
	return strings.Join(tokens, "_"), nil
}

// DeriveFilename returns the output raster name for a source granule
// name: the derived stem under a ".tif" extension.
//
//	co2flux_2021_01.nc -> co2flux_202101.tif
func DeriveFilename(name string) (string, error) {
	stem, err := DeriveStem(name)
	if err != nil {
		return "", err
	}
	return stem + ".tif", nil
}
