package reshape

// Profile returns the GTiff creation options recommended for samples of
// the given Go element type, as reported by a Dataset's variables.
// Floating point outputs never get a predictor: horizontal differencing
// on 64 bit samples produces files some readers cannot decode. Integer
// outputs keep it, as it compresses them better and decodes everywhere.
func Profile(goType string) []string {
	opts := []string{
		"COMPRESS=DEFLATE",
		"ZLEVEL=6",
		"TILED=YES",
		"BLOCKXSIZE=512",
		"BLOCKYSIZE=512",
	}
	switch goType {
	case "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64":
		opts = append(opts, "PREDICTOR=2")
	default:
		// float samples, and anything unknown is written as float64
		opts = append(opts, "PREDICTOR=1", "BIGTIFF=YES")
	}
	return opts
}
