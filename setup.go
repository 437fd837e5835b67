package tiffmend

import (
	"os"
	"sync"

	"github.com/airbusgeo/godal"
)

var setupOnce sync.Once

// Setup registers the gdal drivers and applies the process-wide gdal
// configuration used by the batch ingestion environment: directory scans
// on open are suppressed and encoders may use every core. It must be
// called once before any file is inspected or repaired; extra calls are
// no-ops.
func Setup() {
	setupOnce.Do(func() {
		if os.Getenv("GDAL_DISABLE_READDIR_ON_OPEN") == "" {
			os.Setenv("GDAL_DISABLE_READDIR_ON_OPEN", "TRUE")
		}
		if os.Getenv("GDAL_NUM_THREADS") == "" {
			os.Setenv("GDAL_NUM_THREADS", "ALL_CPUS")
		}
		godal.RegisterAll()
	})
}
