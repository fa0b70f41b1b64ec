package vision

import (
	"bytes"
	"image"
	"image/png"

	"github.com/nfnt/resize"
)

// DownscalePNG shrinks a screenshot to at most maxWidth pixels wide before
// it is shipped to a vision model, keeping token cost down. Images already
// narrow enough pass through unchanged.
func DownscalePNG(data []byte, maxWidth uint) ([]byte, error) {
	if maxWidth == 0 {
		maxWidth = 1024
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, nil
	}

	resized := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
