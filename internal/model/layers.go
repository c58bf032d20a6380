package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable matrix and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad resets the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// uniform fills p with U(-bound, bound), the fan-in scaled init used by torch layers.
func (p *Param) uniform(rng *rand.Rand, bound float64) {
	data := p.Value.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
}

// dense is a fully connected layer y = xW + b over row-major batches.
type dense struct {
	w *Param
	b *Param
	x *mat.Dense
}

func newDense(name string, in, out int, rng *rand.Rand) *dense {
	d := &dense{
		w: newParam(name+".weight", in, out),
		b: newParam(name+".bias", 1, out),
	}
	bound := 1 / math.Sqrt(float64(in))
	d.w.uniform(rng, bound)
	d.b.uniform(rng, bound)
	return d
}

func (d *dense) params() []*Param {
	return []*Param{d.w, d.b}
}

func (d *dense) forward(x *mat.Dense) *mat.Dense {
	d.x = x
	rows, _ := x.Dims()
	_, out := d.w.Value.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, d.w.Value)
	addRowVector(y, d.b.Value.RawRowView(0))
	return y
}

// backward accumulates dW and db and returns dL/dx.
func (d *dense) backward(dy *mat.Dense) *mat.Dense {
	var gw mat.Dense
	gw.Mul(d.x.T(), dy)
	d.w.Grad.Add(d.w.Grad, &gw)
	accumulateColSums(d.b.Grad.RawRowView(0), dy)

	rows, _ := dy.Dims()
	in, _ := d.w.Value.Dims()
	dx := mat.NewDense(rows, in, nil)
	dx.Mul(dy, d.w.Value.T())
	return dx
}

// dropout zeroes activations with probability p in training mode and
// rescales survivors by 1/(1-p).
type dropout struct {
	p    float64
	rng  *rand.Rand
	mask []float64
}

func (d *dropout) forward(x *mat.Dense, training bool) *mat.Dense {
	d.mask = nil
	if !training || d.p == 0 {
		return x
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Copy(x)
	data := out.RawMatrix().Data
	d.mask = make([]float64, len(data))
	scale := 1 / (1 - d.p)
	for i := range data {
		if d.rng.Float64() >= d.p {
			d.mask[i] = scale
		}
		data[i] *= d.mask[i]
	}
	return out
}

// backward applies the mask of the last forward call to dy in place.
func (d *dropout) backward(dy *mat.Dense) {
	if d.mask == nil {
		return
	}
	data := dy.RawMatrix().Data
	for i := range data {
		data[i] *= d.mask[i]
	}
}

func addRowVector(m *mat.Dense, v []float64) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] += v[j]
		}
	}
}

func accumulateColSums(dst []float64, m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		for j, v := range m.RawRowView(i) {
			dst[j] += v
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
