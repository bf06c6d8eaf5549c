package images

import (
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // WebP decoder
)

// blurHashSize bounds the thumbnail the hash is computed from.
const blurHashSize = 64

// BlurHash encodes img after shrinking it to at most blurHashSize on the long edge.
func BlurHash(img image.Image) (string, error) {
	hash, err := blurhash.Encode(4, 3, thumbnail(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// thumbnail nearest-neighbour scales img; the hash is a placeholder so quality is irrelevant.
func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= blurHashSize && h <= blurHashSize {
		return img
	}

	dw, dh := blurHashSize, blurHashSize
	if w > h {
		dh = max(1, h*blurHashSize/w)
	} else {
		dw = max(1, w*blurHashSize/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := range dh {
		for x := range dw {
			dst.Set(x, y, img.At(b.Min.X+x*w/dw, b.Min.Y+y*h/dh))
		}
	}
	return dst
}
