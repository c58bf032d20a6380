package features

import (
	"archive/tar"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sbinet/npyio"
)

// WriteShard writes samples to a tar shard at path in the cache format.
func WriteShard(path string, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create shard: %w", err)
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	for _, s := range samples {
		var buf bytes.Buffer
		if err := npyio.Write(&buf, s.Features); err != nil {
			return fmt.Errorf("encode %s: %w", s.Key, err)
		}
		if err := addEntry(tw, s.Key+".npy", buf.Bytes()); err != nil {
			return err
		}
		if err := addEntry(tw, s.Key+".cls", []byte(strconv.Itoa(s.Label))); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	return f.Close()
}

// WriteSplit shards split into dir with at most perShard samples per shard.
func WriteSplit(dir string, split Split, perShard int) ([]string, error) {
	if perShard <= 0 {
		perShard = split.Len()
	}
	var paths []string
	for start := 0; start < split.Len(); start += perShard {
		end := min(start+perShard, split.Len())
		samples := make([]Sample, 0, end-start)
		for i := start; i < end; i++ {
			samples = append(samples, Sample{
				Key:      fmt.Sprintf("%08d", i),
				Features: split.Features[i],
				Label:    split.Labels[i],
			})
		}
		path := filepath.Join(dir, ShardName(len(paths)))
		if err := WriteShard(path, samples); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func addEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
