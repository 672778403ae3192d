package cache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	// Декодеры форматов миниатюр CDN
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// ErrUndecodable — байты не являются изображением поддерживаемого формата.
var ErrUndecodable = errors.New("не удалось декодировать изображение")

// EncodeImage кодирует изображение в PNG (без потерь) для дискового кэша.
func EncodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("кодирование PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage декодирует PNG, JPEG, GIF или WebP.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, nil
}
