package exiftool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aliskhannn/imageforge/internal/model"
)

const timestampFormat = "2006:01:02 15:04:05"

// Writer stamps capture metadata onto image files by invoking exiftool.
type Writer struct {
	binary string
}

// New creates a Writer around the given binary name. An empty name falls
// back to "exiftool".
func New(binary string) *Writer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "exiftool"
	}
	return &Writer{binary: binary}
}

// Write overwrites the metadata fields of the file at path in place.
func (w *Writer) Write(ctx context.Context, path string, set model.MetadataSet) error {
	args := BuildArgs(path, set)

	cmd := exec.CommandContext(ctx, w.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("exiftool write: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

// BuildArgs translates a metadata record into the exiftool argument list.
func BuildArgs(path string, set model.MetadataSet) []string {
	make_ := set.Device
	if idx := strings.IndexByte(set.Device, ' '); idx > 0 {
		make_ = set.Device[:idx]
	}

	args := []string{
		"-overwrite_original",
		"-Make=" + make_,
		"-Model=" + set.Device,
		"-LensModel=" + set.Camera,
		"-DateTimeOriginal=" + set.CapturedAt.Format(timestampFormat),
		"-FocalLength=" + set.FocalLength,
		"-ExposureTime=" + set.Exposure,
	}

	if set.GPS != nil {
		args = append(args,
			fmt.Sprintf("-GPSLatitude=%.6f", set.GPS.Latitude),
			fmt.Sprintf("-GPSLongitude=%.6f", set.GPS.Longitude),
		)
	}

	return append(args, path)
}
