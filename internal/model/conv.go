package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Conv slides Filters kernels of Kernel frames (spanning every channel)
// along time, applies ReLU, averages over time and classifies with a
// dense head.
type Conv struct {
	spec     Spec
	weight   *Param // [Kernel*Channels, Filters], im2col layout
	bias     *Param // [1, Filters]
	head     *dense
	drop     dropout
	training bool

	batch int
	cols  *mat.Dense // [B*L, Kernel*Channels]
	act   *mat.Dense // [B*L, Filters], post-ReLU
}

// NewConv constructs a convolutional classifier.
func NewConv(spec Spec, seed int64) *Conv {
	rng := rand.New(rand.NewSource(seed))
	fanIn := spec.Kernel * spec.Channels
	m := &Conv{
		spec:   spec,
		weight: newParam("conv.weight", fanIn, spec.Filters),
		bias:   newParam("conv.bias", 1, spec.Filters),
		drop:   dropout{p: spec.Dropout, rng: rng},
	}
	bound := 1 / math.Sqrt(float64(fanIn))
	m.weight.uniform(rng, bound)
	m.bias.uniform(rng, bound)
	m.head = newDense("fc", spec.Filters, spec.NumClasses, rng)
	return m
}

func (m *Conv) Params() []*Param {
	return append([]*Param{m.weight, m.bias}, m.head.params()...)
}

func (m *Conv) SetTraining(training bool) {
	m.training = training
}

// outLen is the number of valid kernel positions along time.
func (m *Conv) outLen() int {
	return m.spec.SeqLen - m.spec.Kernel + 1
}

func (m *Conv) Forward(inputs []*mat.Dense) (*mat.Dense, error) {
	if err := checkInputs(inputs, m.spec.SeqLen, m.spec.Channels); err != nil {
		return nil, err
	}
	b, l, k, ch, f := len(inputs), m.outLen(), m.spec.Kernel, m.spec.Channels, m.spec.Filters

	cols := mat.NewDense(b*l, k*ch, nil)
	for i, in := range inputs {
		for p := 0; p < l; p++ {
			row := cols.RawRowView(i*l + p)
			for q := 0; q < k; q++ {
				copy(row[q*ch:(q+1)*ch], in.RawRowView(p+q))
			}
		}
	}

	act := mat.NewDense(b*l, f, nil)
	act.Mul(cols, m.weight.Value)
	addRowVector(act, m.bias.Value.RawRowView(0))
	data := act.RawMatrix().Data
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}

	pooled := mat.NewDense(b, f, nil)
	inv := 1 / float64(l)
	for i := 0; i < b; i++ {
		dst := pooled.RawRowView(i)
		for p := 0; p < l; p++ {
			for j, v := range act.RawRowView(i*l + p) {
				dst[j] += v * inv
			}
		}
	}

	m.batch, m.cols, m.act = b, cols, act
	return m.head.forward(m.drop.forward(pooled, m.training)), nil
}

func (m *Conv) Backward(dScores *mat.Dense) error {
	if err := checkGrad(dScores, m.batch, m.spec.NumClasses); err != nil {
		return err
	}
	b, l, f := m.batch, m.outLen(), m.spec.Filters

	dPooled := m.head.backward(dScores)
	m.drop.backward(dPooled)

	dAct := mat.NewDense(b*l, f, nil)
	inv := 1 / float64(l)
	for i := 0; i < b; i++ {
		src := dPooled.RawRowView(i)
		for p := 0; p < l; p++ {
			act := m.act.RawRowView(i*l + p)
			dst := dAct.RawRowView(i*l + p)
			for j := range dst {
				if act[j] > 0 {
					dst[j] = src[j] * inv
				}
			}
		}
	}

	var gw mat.Dense
	gw.Mul(m.cols.T(), dAct)
	m.weight.Grad.Add(m.weight.Grad, &gw)
	accumulateColSums(m.bias.Grad.RawRowView(0), dAct)
	return nil
}
