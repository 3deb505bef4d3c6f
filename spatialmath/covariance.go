package spatialmath

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CovarianceDim is the side of a pose covariance: x, y, z, roll, pitch, yaw.
const CovarianceDim = 6

// Covariance is a 6x6 pose covariance. It is assumed symmetric positive semi-definite as
// delivered by the estimator and is not re-validated.
type Covariance struct {
	m *mat.Dense
}

// NewCovariance builds a covariance from the 36 row-major values ROS messages carry.
func NewCovariance(values []float64) (*Covariance, error) {
	if len(values) != CovarianceDim*CovarianceDim {
		return nil, errors.Errorf("covariance needs %d values, got %d", CovarianceDim*CovarianceDim, len(values))
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Covariance{m: mat.NewDense(CovarianceDim, CovarianceDim, data)}, nil
}

// NewDiagonalCovariance returns a covariance with the given variances on the diagonal.
func NewDiagonalCovariance(x, y, z, roll, pitch, yaw float64) *Covariance {
	diag := []float64{x, y, z, roll, pitch, yaw}
	data := make([]float64, CovarianceDim*CovarianceDim)
	for i, v := range diag {
		data[i*CovarianceDim+i] = v
	}
	return &Covariance{m: mat.NewDense(CovarianceDim, CovarianceDim, data)}
}

// At returns the element at row i, column j.
func (c *Covariance) At(i, j int) float64 {
	return c.m.At(i, j)
}

// Array returns the 36 row-major values.
func (c *Covariance) Array() []float64 {
	if c == nil {
		return make([]float64, CovarianceDim*CovarianceDim)
	}
	return mat.DenseCopyOf(c.m).RawMatrix().Data
}

func (c *Covariance) matrix() mat.Matrix {
	if c == nil {
		return mat.NewDense(CovarianceDim, CovarianceDim, nil)
	}
	return c.m
}

// CovarianceSquaredDifference is the element-wise squared difference of a and b, summed. A nil
// covariance counts as all zeros.
func CovarianceSquaredDifference(a, b *Covariance) float64 {
	var diff mat.Dense
	diff.Sub(a.matrix(), b.matrix())
	norm := mat.Norm(&diff, 2)
	return norm * norm
}
