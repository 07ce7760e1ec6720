package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// converterBin is the external tool used for SVG conversion. rsvg-convert
// ships with librsvg and handles text metrics far better than pure-Go
// rasterizers.
const converterBin = "rsvg-convert"

// ErrConverterMissing is returned when rsvg-convert is not installed.
var ErrConverterMissing = fmt.Errorf("%s not found in PATH (install librsvg)", converterBin)

// ConverterAvailable reports whether SVG-to-PNG/PDF conversion can run on
// this host.
func ConverterAvailable() bool {
	_, err := exec.LookPath(converterBin)
	return err == nil
}

// ToPDF converts SVG bytes to a PDF document.
func ToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	return convert(ctx, svg, "pdf")
}

// ToPNG converts SVG bytes to a PNG image.
func ToPNG(ctx context.Context, svg []byte) ([]byte, error) {
	return convert(ctx, svg, "png", "--dpi-x", "192", "--dpi-y", "192")
}

func convert(ctx context.Context, svg []byte, format string, extra ...string) ([]byte, error) {
	if !ConverterAvailable() {
		return nil, ErrConverterMissing
	}

	args := append([]string{"--format", format}, extra...)
	cmd := exec.CommandContext(ctx, converterBin, args...)
	cmd.Stdin = bytes.NewReader(svg)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("convert svg to %s: %w: %s", format, err, stderr.String())
		}
		return nil, fmt.Errorf("convert svg to %s: %w", format, err)
	}
	return out.Bytes(), nil
}
