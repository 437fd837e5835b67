package reshape

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleDeriveFilename() {
	name, _ := DeriveFilename("gs://ingest/raw/co2flux_2021_01.nc")
	fmt.Println(name)
	// Output: co2flux_202101.tif
}

func TestDeriveFilename(t *testing.T) {
	type tc struct {
		in   string
		want string
	}
	cases := []tc{
		{"co2flux_2021_01.nc", "co2flux_202101.tif"},
		{"/ingest/raw/co2flux_2021_01.nc", "co2flux_202101.tif"},
		{"gs://bucket/raw/co2flux_2021_01.nc", "co2flux_202101.tif"},
		{"oceanco2 2022 12.nc", "oceanco2_202212.tif"},
		{"ecco_darwin_co2flux_2020_07.nc", "ecco_darwin_co2flux_202007.tif"},
		{"a_b.nc", "ab.tif"},
	}
	for _, c := range cases {
		got, err := DeriveFilename(c.in)
		assert.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestDeriveFilenameTooFewTokens(t *testing.T) {
	for _, in := range []string{"co2flux.nc", "x", ""} {
		_, err := DeriveFilename(in)
		assert.ErrorIs(t, err, ErrTokenCount, in)
	}
}

func TestDeriveStem(t *testing.T) {
	stem, err := DeriveStem("co2flux_2021_01.nc")
	assert.NoError(t, err)
	assert.Equal(t, "co2flux_202101", stem)
}
