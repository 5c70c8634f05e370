// Package kernel builds the 2-D Gaussian smoothing kernel the
// FourierSmoother convolves dense windows against.
package kernel

import "gonum.org/v1/gonum/stat/distuv"

// Build samples a size x size matrix of a zero-mean 2-D Gaussian with
// diagonal covariance diag(sigmaMobility, sigmaRT), normalized to sum to
// 1. Row index is the mobility/scan axis, column index is the rt/cycle
// axis, matching the (S, C) convention used throughout the engine.
func Build(size int, sigmaRT, sigmaMobility float64) [][]float64 {
	if size <= 0 {
		return nil
	}

	rowDist := distuv.Normal{Mu: 0, Sigma: sigmaMobility}
	colDist := distuv.Normal{Mu: 0, Sigma: sigmaRT}

	center := float64(size) / 2

	k := make([][]float64, size)

	var total float64

	for i := 0; i < size; i++ {
		k[i] = make([]float64, size)
		rowDensity := rowDist.Prob(float64(i) - center)

		for j := 0; j < size; j++ {
			v := rowDensity * colDist.Prob(float64(j)-center)
			k[i][j] = v
			total += v
		}
	}

	if total == 0 {
		return k
	}

	for i := range k {
		for j := range k[i] {
			k[i][j] /= total
		}
	}

	return k
}
