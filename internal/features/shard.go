package features

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Sample is one decoded cache entry.
type Sample struct {
	Key      string
	Features *mat.Dense
	Label    int
}

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("features: pending pair buffer exceeded")

const defaultPendingCap = 1024

// StreamShard streams paired samples from the shard at path, checking each
// matrix against shape. Samples are emitted in the order their pair completes.
func StreamShard(ctx context.Context, path string, shape Shape, pendingCap int) (<-chan Sample, <-chan error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("open shard: %w", err)
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		pending := make(pendingPairs)

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- fmt.Errorf("%w: read tar %s: %v", ErrCorrupt, path, err)
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(hdr.Name)
			ext := strings.ToLower(filepath.Ext(name))
			key := strings.TrimSuffix(name, ext)

			switch ext {
			case ".npy":
				payload, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read features %s: %w", name, err)
					return
				}
				m, err := decodeMatrix(payload, shape)
				if err != nil {
					errCh <- fmt.Errorf("decode %s in %s: %w", name, path, err)
					return
				}
				pending.get(key).features = m
			case ".cls":
				payload, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read label %s: %w", name, err)
					return
				}
				label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
				if err != nil {
					errCh <- fmt.Errorf("%w: label %s in %s: %v", ErrCorrupt, name, path, err)
					return
				}
				pending.get(key).label = &label
			default:
				continue
			}

			if len(pending) > pendingCap {
				errCh <- ErrPendingOverflow
				return
			}

			if part := pending[key]; part.ready() {
				sample := Sample{Key: key, Features: part.features, Label: *part.label}
				delete(pending, key)
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- sample:
				}
			}
		}

		if len(pending) > 0 {
			errCh <- fmt.Errorf("%w: %d samples incomplete in %s", ErrCorrupt, len(pending), path)
		}
	}()

	return out, errCh
}

// ReadShard collects every sample of a shard.
func ReadShard(ctx context.Context, path string, shape Shape) ([]Sample, error) {
	samples, errCh := StreamShard(ctx, path, shape, 0)
	var out []Sample
	for sample := range samples {
		out = append(out, sample)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

type partial struct {
	features *mat.Dense
	label    *int
}

func (p *partial) ready() bool {
	return p != nil && p.features != nil && p.label != nil
}

type pendingPairs map[string]*partial

func (p pendingPairs) get(key string) *partial {
	part := p[key]
	if part == nil {
		part = &partial{}
		p[key] = part
	}
	return part
}

// decodeMatrix parses a .npy payload holding a float32 or float64 matrix.
// A flat vector of Frames*Coefficients values is accepted as well.
func decodeMatrix(payload []byte, shape Shape) (*mat.Dense, error) {
	r, err := npyio.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	dims := r.Header.Descr.Shape
	want := shape.Frames * shape.Coefficients

	var data []float64
	switch dtype := r.Header.Descr.Type; dtype {
	case "<f8":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	case "<f4":
		var raw []float32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %s", ErrCorrupt, dtype)
	}

	switch {
	case len(dims) == 2 && dims[0] == shape.Frames && dims[1] == shape.Coefficients:
	case len(dims) == 1 && dims[0] == want:
	default:
		return nil, fmt.Errorf("%w: array shape %v, want [%d %d]", ErrCorrupt, dims, shape.Frames, shape.Coefficients)
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrCorrupt, len(data), want)
	}

	if r.Header.Descr.Fortran && len(dims) == 2 {
		cm := mat.NewDense(shape.Coefficients, shape.Frames, data)
		m := mat.NewDense(shape.Frames, shape.Coefficients, nil)
		m.Copy(cm.T())
		return m, nil
	}
	return mat.NewDense(shape.Frames, shape.Coefficients, data), nil
}
