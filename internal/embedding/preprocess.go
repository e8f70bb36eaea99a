package embedding

import (
	"image"

	"golang.org/x/image/draw"
)

// CLIPImageSize is the input resolution of CLIP ViT vision encoders.
const CLIPImageSize = 224

var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PreprocessCLIP resizes img so its shorter side equals size, center-crops it to
// size x size and returns the pixels as channel-major float32 values normalized with
// the CLIP mean and standard deviation.
func PreprocessCLIP(img image.Image, size int) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := size, size
	if w > 0 && h > 0 {
		if w < h {
			nh = max(size, (h*size+w/2)/w)
		} else {
			nw = max(size, (w*size+h/2)/h)
		}
	}
	scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)

	x0, y0 := (nw-size)/2, (nh-size)/2
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := scaled.PixOffset(x0+x, y0+y)
			i := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(scaled.Pix[off+c]) / 255
				out[c*plane+i] = (v - clipMean[c]) / clipStd[c]
			}
		}
	}
	return out
}
