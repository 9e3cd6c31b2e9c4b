/*
NAME
  geometry.go

DESCRIPTION
  geometry.go holds the pure-math rotation bookkeeping shared by the visual
  odometry tracker: orthonormality drift measurement and Gram-Schmidt
  renormalization. It has no gocv dependency, so it builds without the
  withcv tag.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package vo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rotation3 is a 3x3 rotation matrix stored row-major, the representation
// the pose integrator accumulates into.
type Rotation3 [9]float64

// Identity3 is the 3x3 identity rotation.
var Identity3 = Rotation3{
	1, 0, 0,
	0, 1, 0,
	0, 0, 1,
}

// Mul returns r * o (matrix product, both row-major 3x3).
func (r Rotation3) Mul(o Rotation3) Rotation3 {
	a := r.dense()
	b := o.dense()
	var c mat.Dense
	c.Mul(a, b)
	return fromDense(&c)
}

// Apply returns r * v for a 3-vector v.
func (r Rotation3) Apply(v [3]float64) [3]float64 {
	a := r.dense()
	vv := mat.NewVecDense(3, v[:])
	var out mat.VecDense
	out.MulVec(a, vv)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

func (r Rotation3) dense() *mat.Dense {
	return mat.NewDense(3, 3, r[:])
}

func fromDense(d *mat.Dense) Rotation3 {
	var r Rotation3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = d.At(i, j)
		}
	}
	return r
}

// OrthonormalityDrift returns ‖R R^T - I‖_F, the Frobenius norm of r's
// deviation from the identity-preserving property RR^T = I. This is a
// validity check on r as a rotation matrix (it is near zero for any genuine
// rotation, however large its rotation angle), used to decide when
// accumulated floating-point error has drifted r far enough from orthonormal
// that it needs Gram-Schmidt correction.
func OrthonormalityDrift(r Rotation3) float64 {
	a := r.dense()
	var rt mat.Dense
	rt.CloneFrom(a.T())
	var prod mat.Dense
	prod.Mul(a, &rt)

	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			id := 0.0
			if i == j {
				id = 1.0
			}
			d := prod.At(i, j) - id
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

// RotationMagnitude returns ‖R - I‖_F, the Frobenius norm of r's deviation
// from the identity rotation. Unlike OrthonormalityDrift, this grows with
// the actual rotation angle r represents, which is what the motion gate
// needs to distinguish "the camera rotated" from "the camera held still".
func RotationMagnitude(r Rotation3) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			id := 0.0
			if i == j {
				id = 1.0
			}
			d := r[i*3+j] - id
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

// Renormalize applies Gram-Schmidt orthonormalization to r's rows, correcting
// the drift that accumulates from repeated floating-point rotation
// composition. It is invoked at least every RenormalizeEvery accepted
// frames, per the specification's failure taxonomy for orthonormality drift.
func Renormalize(r Rotation3) Rotation3 {
	row0 := normalize3([3]float64{r[0], r[1], r[2]})
	row1 := orthogonalize(row0, [3]float64{r[3], r[4], r[5]})
	row1 = normalize3(row1)
	row2 := cross3(row0, row1)

	return Rotation3{
		row0[0], row0[1], row0[2],
		row1[0], row1[1], row1[2],
		row2[0], row2[1], row2[2],
	}
}

func normalize3(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n < 1e-12 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

func orthogonalize(onto, v [3]float64) [3]float64 {
	d := onto[0]*v[0] + onto[1]*v[1] + onto[2]*v[2]
	return [3]float64{
		v[0] - d*onto[0],
		v[1] - d*onto[1],
		v[2] - d*onto[2],
	}
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// norm3 returns the Euclidean norm of v.
func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
