package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTM runs a single-layer LSTM over the time axis and classifies the
// final hidden state with a dense head.
//
// Gate columns of the packed weights are ordered input, forget, cell, output.
type LSTM struct {
	spec     Spec
	wx       *Param // [Channels, 4*Hidden]
	wh       *Param // [Hidden, 4*Hidden]
	bias     *Param // [1, 4*Hidden]
	head     *dense
	drop     dropout
	training bool

	batch int
	xs    []*mat.Dense // per step [B, Channels]
	hs    []*mat.Dense // per step [B, Hidden], hs[0] is the zero state
	cs    []*mat.Dense
	gates []*mat.Dense // per step [B, 4*Hidden], post-activation
}

// NewLSTM constructs an LSTM classifier with U(-1/sqrt(H), 1/sqrt(H)) weights.
func NewLSTM(spec Spec, seed int64) *LSTM {
	rng := rand.New(rand.NewSource(seed))
	h := spec.Hidden
	m := &LSTM{
		spec: spec,
		wx:   newParam("lstm.weight_ih", spec.Channels, 4*h),
		wh:   newParam("lstm.weight_hh", h, 4*h),
		bias: newParam("lstm.bias", 1, 4*h),
		drop: dropout{p: spec.Dropout, rng: rng},
	}
	bound := 1 / math.Sqrt(float64(h))
	m.wx.uniform(rng, bound)
	m.wh.uniform(rng, bound)
	m.bias.uniform(rng, bound)
	m.head = newDense("fc", h, spec.NumClasses, rng)
	return m
}

// Params returns the recurrent weights followed by the head.
func (m *LSTM) Params() []*Param {
	return append([]*Param{m.wx, m.wh, m.bias}, m.head.params()...)
}

// SetTraining toggles dropout.
func (m *LSTM) SetTraining(training bool) {
	m.training = training
}

// Forward unrolls the sequence and returns [B, NumClasses] logits.
func (m *LSTM) Forward(inputs []*mat.Dense) (*mat.Dense, error) {
	if err := checkInputs(inputs, m.spec.SeqLen, m.spec.Channels); err != nil {
		return nil, err
	}
	b, steps, h := len(inputs), m.spec.SeqLen, m.spec.Hidden

	m.batch = b
	m.xs = make([]*mat.Dense, steps)
	m.hs = make([]*mat.Dense, steps+1)
	m.cs = make([]*mat.Dense, steps+1)
	m.gates = make([]*mat.Dense, steps)
	m.hs[0] = mat.NewDense(b, h, nil)
	m.cs[0] = mat.NewDense(b, h, nil)

	bias := m.bias.Value.RawRowView(0)
	for t := 0; t < steps; t++ {
		x := mat.NewDense(b, m.spec.Channels, nil)
		for i, in := range inputs {
			copy(x.RawRowView(i), in.RawRowView(t))
		}

		z := mat.NewDense(b, 4*h, nil)
		z.Mul(x, m.wx.Value)
		var zh mat.Dense
		zh.Mul(m.hs[t], m.wh.Value)
		z.Add(z, &zh)
		addRowVector(z, bias)

		hNext := mat.NewDense(b, h, nil)
		cNext := mat.NewDense(b, h, nil)
		for i := 0; i < b; i++ {
			g := z.RawRowView(i)
			cPrev := m.cs[t].RawRowView(i)
			cRow := cNext.RawRowView(i)
			hRow := hNext.RawRowView(i)
			for j := 0; j < h; j++ {
				g[j] = sigmoid(g[j])
				g[h+j] = sigmoid(g[h+j])
				g[2*h+j] = math.Tanh(g[2*h+j])
				g[3*h+j] = sigmoid(g[3*h+j])
				cRow[j] = g[h+j]*cPrev[j] + g[j]*g[2*h+j]
				hRow[j] = g[3*h+j] * math.Tanh(cRow[j])
			}
		}
		m.xs[t] = x
		m.gates[t] = z
		m.hs[t+1] = hNext
		m.cs[t+1] = cNext
	}

	last := m.drop.forward(m.hs[steps], m.training)
	return m.head.forward(last), nil
}

// Backward runs backpropagation through time for the last Forward call.
func (m *LSTM) Backward(dScores *mat.Dense) error {
	if err := checkGrad(dScores, m.batch, m.spec.NumClasses); err != nil {
		return err
	}
	b, h := m.batch, m.spec.Hidden

	dh := m.head.backward(dScores)
	m.drop.backward(dh)
	dc := mat.NewDense(b, h, nil)
	dz := mat.NewDense(b, 4*h, nil)
	dbias := m.bias.Grad.RawRowView(0)

	for t := m.spec.SeqLen - 1; t >= 0; t-- {
		for i := 0; i < b; i++ {
			g := m.gates[t].RawRowView(i)
			c := m.cs[t+1].RawRowView(i)
			cPrev := m.cs[t].RawRowView(i)
			dhRow := dh.RawRowView(i)
			dcRow := dc.RawRowView(i)
			dzRow := dz.RawRowView(i)
			for j := 0; j < h; j++ {
				in, forget, cell, out := g[j], g[h+j], g[2*h+j], g[3*h+j]
				tc := math.Tanh(c[j])
				dcv := dcRow[j] + dhRow[j]*out*(1-tc*tc)
				dzRow[j] = dcv * cell * in * (1 - in)
				dzRow[h+j] = dcv * cPrev[j] * forget * (1 - forget)
				dzRow[2*h+j] = dcv * in * (1 - cell*cell)
				dzRow[3*h+j] = dhRow[j] * tc * out * (1 - out)
				dcRow[j] = dcv * forget
			}
		}

		var gx, gh mat.Dense
		gx.Mul(m.xs[t].T(), dz)
		m.wx.Grad.Add(m.wx.Grad, &gx)
		gh.Mul(m.hs[t].T(), dz)
		m.wh.Grad.Add(m.wh.Grad, &gh)
		accumulateColSums(dbias, dz)

		dh.Mul(dz, m.wh.Value.T())
	}
	return nil
}
