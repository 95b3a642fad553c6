package channels

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT2 performs a 2D Fast Fourier Transform on row-major data of h rows and w columns.
// The forward transform is unnormalized.
//
// Parameters:
//   - data: Input samples in row-major order, left unmodified
//   - h, w: Number of rows and columns
//
// Returns:
//   - The 2D DFT in row-major order with the zero frequency at index 0
func FFT2(data []complex128, h, w int) []complex128 {
	return fft2(data, h, w, false)
}

// IFFT2 performs the inverse 2D transform, scaled by 1/(h*w).
func IFFT2(data []complex128, h, w int) []complex128 {
	out := fft2(data, h, w, true)
	scale := complex(1/float64(h*w), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// fft2 transforms rows then columns with gonum's mixed-radix complex FFT.
// CmplxFFT values hold work buffers, so each call builds its own plans.
func fft2(data []complex128, h, w int, inverse bool) []complex128 {
	if len(data) != h*w {
		panic("channels: fft2 data length does not match shape")
	}
	result := make([]complex128, h*w)
	copy(result, data)

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for i := 0; i < h; i++ {
		src := result[i*w : (i+1)*w]
		if inverse {
			rowFFT.Sequence(row, src)
		} else {
			rowFFT.Coefficients(row, src)
		}
		copy(src, row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			col[i] = result[i*w+j]
		}
		if inverse {
			colFFT.Sequence(out, col)
		} else {
			colFFT.Coefficients(out, col)
		}
		for i := 0; i < h; i++ {
			result[i*w+j] = out[i]
		}
	}

	return result
}

// FFTShift moves the zero-frequency term to index (h/2, w/2).
func FFTShift(data []complex128, h, w int) []complex128 {
	return roll2(data, h, w, h/2, w/2)
}

// IFFTShift undoes FFTShift for both odd and even sizes
func IFFTShift(data []complex128, h, w int) []complex128 {
	return roll2(data, h, w, -(h / 2), -(w / 2))
}

// roll2 circularly shifts rows by dy and columns by dx
func roll2(data []complex128, h, w, dy, dx int) []complex128 {
	out := make([]complex128, len(data))
	for i := 0; i < h; i++ {
		ti := mod(i+dy, h)
		for j := 0; j < w; j++ {
			out[ti*w+mod(j+dx, w)] = data[i*w+j]
		}
	}
	return out
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// toComplex widens real data to complex128
func toComplex(data []float64) []complex128 {
	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = complex(v, 0)
	}
	return out
}

// Spectrum returns fftshift(fft2(img)) for a real image
func Spectrum(img []float64, h, w int) []complex128 {
	return FFTShift(FFT2(toComplex(img), h, w), h, w)
}
