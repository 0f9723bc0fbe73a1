package preprocess

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// flattenOnWhite переносит изображение на непрозрачный белый фон.
// Для непрозрачных изображений результат совпадает с исходными пикселями.
func flattenOnWhite(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
