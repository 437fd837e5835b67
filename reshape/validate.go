package reshape

// Validate reports whether an array is ready to be written as a
// geotiff: it must carry named spatial dimensions with coordinates, a
// reference system, a missing-value sentinel, and at least two
// dimensions. It is the gate a transformation's output passes before any
// file is written.
func Validate(a *Array) bool {
	if a == nil {
		return false
	}
	if len(a.Dims) < 2 {
		return false
	}
	if a.XDim == "" || a.YDim == "" {
		return false
	}
	if a.axis(a.XDim) < 0 || a.axis(a.YDim) < 0 {
		return false
	}
	if _, ok := a.Coords[a.XDim]; !ok {
		return false
	}
	if _, ok := a.Coords[a.YDim]; !ok {
		return false
	}
	if a.CRS == "" {
		return false
	}
	if a.NoData == nil {
		return false
	}
	return a.Len() == len(a.Values)
}
