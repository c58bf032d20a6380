package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is a softmax-regression baseline over the flattened feature matrix.
type Linear struct {
	spec  Spec
	head  *dense
	drop  dropout
	train bool
	batch int
}

// NewLinear constructs the baseline with random initialization.
func NewLinear(spec Spec, seed int64) *Linear {
	rng := rand.New(rand.NewSource(seed))
	return &Linear{
		spec: spec,
		head: newDense("fc", spec.SeqLen*spec.Channels, spec.NumClasses, rng),
		drop: dropout{p: spec.Dropout, rng: rng},
	}
}

func (m *Linear) Params() []*Param {
	return m.head.params()
}

func (m *Linear) SetTraining(training bool) {
	m.train = training
}

func (m *Linear) Forward(inputs []*mat.Dense) (*mat.Dense, error) {
	if err := checkInputs(inputs, m.spec.SeqLen, m.spec.Channels); err != nil {
		return nil, err
	}
	width := m.spec.SeqLen * m.spec.Channels
	flat := mat.NewDense(len(inputs), width, nil)
	for i, in := range inputs {
		row := flat.RawRowView(i)
		for t := 0; t < m.spec.SeqLen; t++ {
			copy(row[t*m.spec.Channels:], in.RawRowView(t))
		}
	}
	m.batch = len(inputs)
	return m.head.forward(m.drop.forward(flat, m.train)), nil
}

func (m *Linear) Backward(dScores *mat.Dense) error {
	if err := checkGrad(dScores, m.batch, m.spec.NumClasses); err != nil {
		return err
	}
	m.head.backward(dScores)
	return nil
}
