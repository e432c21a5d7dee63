package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/wii-tools/wiivol"
)

// volumeFunc inspects an already-opened volume and returns the value to
// JSON-encode for one disc image.
type volumeFunc func(filename string, vol *wiivol.Volume) interface{}

var (
	processFlags pflag.FlagSet
	compact      = processFlags.BoolP("compact", "c", false, "disable pretty-printing of JSON output")
)

// processImages opens each filename as a plain disc image, builds a Volume
// over it, and JSON-encodes whatever process returns. Unlike the teacher's
// stdin-friendly processFiles, a Volume requires random access, so there is
// no stdin fallback here.
func processImages(filenames []string, process volumeFunc) {
	encoder := json.NewEncoder(os.Stdout)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)

	for _, filename := range filenames {
		processImage(filename, process, encoder)
	}
}

func processImage(filename string, process volumeFunc, encoder *json.Encoder) {
	blob, err := wiivol.NewFileBlobReader(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open disc image: %v\n", err)
		os.Exit(2)
	}
	defer blob.Close()

	vol := wiivol.Open(blob)
	encoder.Encode(process(filename, vol))
}
