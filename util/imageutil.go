package util

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"
)

// ProbeImage reads just enough of r to determine the image format and
// pixel dimensions, without decoding the whole image. The blank
// imports register every format the cover pipeline stores, WebP
// included.
func ProbeImage(r io.Reader) (width, height int, format string, err error) {
	config, format, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, "", err
	}
	return config.Width, config.Height, format, nil
}
