package optimizer

import (
	"errors"
	"fmt"

	"kws-trainer/internal/model"
)

// Optimizer updates classifier parameters from their accumulated gradients.
type Optimizer interface {
	Step() error
	ZeroGrad()
}

// SGD applies param = param - lr * grad.
type SGD struct {
	lr     float64
	params []*model.Param
}

// NewSGD binds the optimizer to params.
func NewSGD(params []*model.Param, lr float64) (*SGD, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("optimizer: learning rate must be > 0 (got %g)", lr)
	}
	if len(params) == 0 {
		return nil, errors.New("optimizer: no parameters")
	}
	return &SGD{lr: lr, params: params}, nil
}

// LearningRate returns the configured step size.
func (s *SGD) LearningRate() float64 {
	return s.lr
}

func (s *SGD) Step() error {
	for _, p := range s.params {
		vr, vc := p.Value.Dims()
		gr, gc := p.Grad.Dims()
		if vr != gr || vc != gc {
			return fmt.Errorf("optimizer: %s gradient is [%d, %d], parameter is [%d, %d]", p.Name, gr, gc, vr, vc)
		}
		p.Value.Apply(func(i, j int, v float64) float64 {
			return v - s.lr*p.Grad.At(i, j)
		}, p.Value)
	}
	return nil
}

func (s *SGD) ZeroGrad() {
	for _, p := range s.params {
		p.ZeroGrad()
	}
}
