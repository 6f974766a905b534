package converter

// resampleBilinear resizes a single-channel float plane with bilinear
// interpolation and edge clamping. The pack's image resizers only operate on
// 8-bit RGBA pixels, which would quantize a [0,1] float mask; masks are
// resampled at full precision instead.
func resampleBilinear(src []float32, srcW, srcH, dstW, dstH int) []float32 {
	if srcW == dstW && srcH == dstH {
		return src
	}
	dst := make([]float32, dstW*dstH)
	scaleX := float64(srcW) / float64(dstW)
	scaleY := float64(srcH) / float64(dstH)
	for y := 0; y < dstH; y++ {
		fy := (float64(y)+0.5)*scaleY - 0.5
		y0 := int(fy)
		ty := fy - float64(y0)
		if fy < 0 {
			y0, ty = 0, 0
		}
		y1 := y0 + 1
		if y1 > srcH-1 {
			y1 = srcH - 1
		}
		for x := 0; x < dstW; x++ {
			fx := (float64(x)+0.5)*scaleX - 0.5
			x0 := int(fx)
			tx := fx - float64(x0)
			if fx < 0 {
				x0, tx = 0, 0
			}
			x1 := x0 + 1
			if x1 > srcW-1 {
				x1 = srcW - 1
			}
			top := float64(src[y0*srcW+x0])*(1-tx) + float64(src[y0*srcW+x1])*tx
			bottom := float64(src[y1*srcW+x0])*(1-tx) + float64(src[y1*srcW+x1])*tx
			dst[y*dstW+x] = float32(top*(1-ty) + bottom*ty)
		}
	}
	return dst
}
