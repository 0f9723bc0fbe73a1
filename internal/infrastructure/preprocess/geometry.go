package preprocess

import (
	"image"
	"image/color"
	"math"

	"github.com/DRSN-tech/product-vision/internal/domain"
	"golang.org/x/image/draw"
)

// resizeShortSide — длина короткой стороны перед центральным кропом.
const resizeShortSide = 256

// centerCrop масштабирует изображение так, чтобы короткая сторона стала 256,
// и вырезает центральный квадрат TensorSide×TensorSide.
func centerCrop(src *image.RGBA) *image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	var nw, nh int
	if w <= h {
		nw, nh = resizeShortSide, int(float64(resizeShortSide)*float64(h)/float64(w))
	} else {
		nw, nh = int(float64(resizeShortSide)*float64(w)/float64(h)), resizeShortSide
	}
	nw, nh = max(nw, domain.TensorSide), max(nh, domain.TensorSide)

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	resize(resized, resized.Bounds(), src)

	left := int(math.Round(float64(nw-domain.TensorSide) / 2))
	top := int(math.Round(float64(nh-domain.TensorSide) / 2))

	dst := image.NewRGBA(image.Rect(0, 0, domain.TensorSide, domain.TensorSide))
	draw.Draw(dst, dst.Bounds(), resized, image.Pt(left, top), draw.Src)
	return dst
}

// padSquare вписывает изображение в квадрат TensorSide×TensorSide с сохранением пропорций
// и центрирует его на белом фоне.
func padSquare(src *image.RGBA) *image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	scale := float64(domain.TensorSide) / float64(max(w, h))

	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, domain.TensorSide, domain.TensorSide))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	x0 := (domain.TensorSide - nw) / 2
	y0 := (domain.TensorSide - nh) / 2
	resize(dst, image.Rect(x0, y0, x0+nw, y0+nh), src)
	return dst
}

// resize масштабирует src в область dr бикубическим фильтром Catmull-Rom.
func resize(dst *image.RGBA, dr image.Rectangle, src *image.RGBA) {
	draw.CatmullRom.Scale(dst, dr, src, src.Bounds(), draw.Src, nil)
}
