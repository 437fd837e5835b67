package reshape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
)

// WriteGeoTIFF writes a validated array to path as a tiled geotiff with
// the array's reference system, nodata sentinel and coordinate derived
// geotransform. The array must be two dimensional up to unit dimensions,
// laid out row major with the y dimension varying slower than x.
func WriteGeoTIFF(a *Array, path string) error {
	if !Validate(a) {
		return fmt.Errorf("%s: array is not ready to write", a.Name)
	}
	xi, yi := a.axis(a.XDim), a.axis(a.YDim)
	if yi > xi {
		return fmt.Errorf("%s: dimension order is %v, expected %s before %s", a.Name, a.Dims, a.YDim, a.XDim)
	}
	for i, s := range a.Shape {
		if i != xi && i != yi && s != 1 {
			return fmt.Errorf("%s: dimension %s has length %d, only the spatial dimensions may exceed 1", a.Name, a.Dims[i], s)
		}
	}
	w, h := a.Shape[xi], a.Shape[yi]
	gt, err := geoTransform(a.Coords[a.XDim], a.Coords[a.YDim])
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name, err)
	}
	sr, err := spatialRef(a.CRS)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name, err)
	}
	defer sr.Close()

	ds, err := godal.Create(godal.GTiff, path, 1, dataTypeFor(a.GoType), w, h,
		godal.CreationOption(Profile(a.GoType)...))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := ds.SetGeoTransform(gt); err != nil {
		ds.Close()
		return fmt.Errorf("%s: set geotransform: %w", path, err)
	}
	if err := ds.SetSpatialRef(sr); err != nil {
		ds.Close()
		return fmt.Errorf("%s: set crs: %w", path, err)
	}
	if err := ds.SetNoData(*a.NoData); err != nil {
		ds.Close()
		return fmt.Errorf("%s: set nodata: %w", path, err)
	}
	if err := ds.Bands()[0].Write(0, 0, a.Values, w, h); err != nil {
		ds.Close()
		return fmt.Errorf("%s: write samples: %w", path, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// geoTransform derives the affine transform from cell center coordinates:
// the grid edge sits half a cell outside the first coordinate.
func geoTransform(xc, yc []float64) ([6]float64, error) {
	if len(xc) < 2 || len(yc) < 2 {
		return [6]float64{}, fmt.Errorf("need at least 2 coordinates per spatial dimension")
	}
	xres := xc[1] - xc[0]
	yres := yc[1] - yc[0]
	if xres == 0 || yres == 0 {
		return [6]float64{}, fmt.Errorf("zero coordinate spacing")
	}
	return [6]float64{
		xc[0] - xres/2, xres, 0,
		yc[0] - yres/2, 0, yres,
	}, nil
}

func spatialRef(crs string) (*godal.SpatialRef, error) {
	code, ok := epsgCode(crs)
	if !ok {
		return nil, fmt.Errorf("unsupported crs %q, expecting EPSG:<code>", crs)
	}
	sr, err := godal.NewSpatialRefFromEPSG(code)
	if err != nil {
		return nil, fmt.Errorf("crs %q: %w", crs, err)
	}
	return sr, nil
}

func epsgCode(crs string) (int, bool) {
	c := strings.ToUpper(strings.TrimSpace(crs))
	c = strings.TrimPrefix(c, "EPSG:")
	code, err := strconv.Atoi(c)
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

func dataTypeFor(goType string) godal.DataType {
	switch goType {
	case "uint8":
		return godal.Byte
	case "int8", "int16":
		return godal.Int16
	case "uint16":
		return godal.UInt16
	case "int32", "int", "int64":
		return godal.Int32
	case "uint32", "uint", "uint64":
		return godal.UInt32
	case "float32":
		return godal.Float32
	}
	return godal.Float64
}
