package optimizer

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"kws-trainer/internal/model"
)

func TestSGDStepReducesLoss(t *testing.T) {
	spec := model.Spec{SeqLen: 6, Channels: 3, NumClasses: 3, Hidden: 8, Filters: 4, Kernel: 3}
	rng := rand.New(rand.NewSource(9))
	inputs := make([]*mat.Dense, 6)
	labels := make([]int, len(inputs))
	for i := range inputs {
		labels[i] = i % spec.NumClasses
		data := make([]float64, spec.SeqLen*spec.Channels)
		for j := range data {
			data[j] = rng.NormFloat64()*0.1 + float64(labels[i])
		}
		inputs[i] = mat.NewDense(spec.SeqLen, spec.Channels, data)
	}

	for _, v := range []model.Variant{model.VariantLSTM, model.VariantConv, model.VariantLinear} {
		t.Run(string(v), func(t *testing.T) {
			clf, err := model.New(v, spec, 1)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			opt, err := NewSGD(clf.Params(), 0.1)
			if err != nil {
				t.Fatalf("NewSGD: %v", err)
			}
			clf.SetTraining(true)
			var first, last float64
			for step := 0; step < 30; step++ {
				opt.ZeroGrad()
				scores, err := clf.Forward(inputs)
				if err != nil {
					t.Fatalf("forward: %v", err)
				}
				loss, grad, err := model.CrossEntropy(labels, scores)
				if err != nil {
					t.Fatalf("loss: %v", err)
				}
				if step == 0 {
					first = loss
				}
				last = loss
				if err := clf.Backward(grad); err != nil {
					t.Fatalf("backward: %v", err)
				}
				if err := opt.Step(); err != nil {
					t.Fatalf("step: %v", err)
				}
			}
			if last >= first {
				t.Fatalf("expected loss to decrease; first=%f last=%f", first, last)
			}
		})
	}
}

func TestNewSGDValidation(t *testing.T) {
	clf := model.NewLinear(model.DefaultSpec(), 1)
	if _, err := NewSGD(clf.Params(), 0); err == nil {
		t.Fatal("expected error for zero learning rate")
	}
	if _, err := NewSGD(nil, 0.1); err == nil {
		t.Fatal("expected error for empty parameter list")
	}
}

func TestZeroGrad(t *testing.T) {
	clf := model.NewLinear(model.Spec{SeqLen: 2, Channels: 2, NumClasses: 2}, 1)
	for _, p := range clf.Params() {
		p.Grad.Set(0, 0, 3)
	}
	opt, err := NewSGD(clf.Params(), 0.5)
	if err != nil {
		t.Fatalf("NewSGD: %v", err)
	}
	opt.ZeroGrad()
	for _, p := range clf.Params() {
		if mat.Norm(p.Grad, 1) != 0 {
			t.Fatalf("%s gradient not cleared", p.Name)
		}
	}
}
