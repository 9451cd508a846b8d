package quadrature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiGL computes the Gauss-Lobatto points for Jacobi polynomials, the
// zeros of (1-X^2)*P'_N^{alpha,beta}(X)
func JacobiGL(alpha, beta float64, N int) ([]float64, error) {
	if N == 0 {
		return []float64{0.0}, nil
	}
	if N == 1 {
		return []float64{-1.0, 1.0}, nil
	}
	// N-1 interior Gauss-Jacobi points plus both end points
	xint, _, err := JacobiGQ(alpha+1, beta+1, N-2)
	if err != nil {
		return nil, err
	}
	x := make([]float64, N+1)
	x[0] = -1.0
	copy(x[1:N], xint)
	x[N] = 1.0
	return x, nil
}

// JacobiGQ computes the N+1 point Gauss-Jacobi rule for weight
// (1-x)^alpha (1+x)^beta on [-1,1] with the Golub-Welsch algorithm
func JacobiGQ(alpha, beta float64, N int) (X, W []float64, err error) {
	if N < 0 {
		return nil, nil, fmt.Errorf("negative Jacobi quadrature order %d", N)
	}
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)},
			[]float64{Gamma0(alpha, beta)}, nil
	}

	h1 := make([]float64, N+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: d0[i] = -(β²-α²)/((2i+α+β)*(2i+α+β+2))
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i, val := range h1 {
		d0[i] = fac / (val * (val + 2.))
	}
	if alpha+beta < 10*1.e-16 {
		d0[0] = 0.
	}

	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		val := h1[i]
		d1[i] = 2.0 / (val + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(val+1)/(val+3),
		)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(NewSymTriDiagonal(d0, d1), true); !ok {
		return nil, nil, fmt.Errorf("eigenvalue decomposition failed for Jacobi(%g,%g) order %d",
			alpha, beta, N)
	}
	X = eig.Values(nil)

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	g0 := Gamma0(alpha, beta)
	W = make([]float64, len(X))
	for i := range W {
		v := vecs.At(0, i)
		W[i] = v * v * g0
	}
	return X, W, nil
}

// Gamma0 is the integral of the Jacobi weight over [-1,1]
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	return math.Gamma(alpha+1.) * math.Gamma(beta+1.) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// NewSymTriDiagonal builds the symmetric tridiagonal Jacobi matrix from its
// diagonal d0 and off diagonal d1
func NewSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	tri := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		tri.SetSym(i, i, d0[i])
		if i < n-1 {
			tri.SetSym(i, i+1, d1[i])
		}
	}
	return tri
}
