package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/airbusgeo/tiffmend"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s file.tif\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(),
			"prints the structure, compression and predictor settings of a raster file")
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	tiffmend.Setup()
	report, err := tiffmend.Inspect(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Print(report.Text())
	if report.HasPredictor() {
		fmt.Println("\nThis file uses a predictor. If readers fail on it, recompress it with tiffmend.")
	}
}
