package features

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

const (
	SplitTrain = "train"
	SplitTest  = "test"
)

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// SplitDir returns the directory holding the shards of one split.
func SplitDir(root, featureType, split string) string {
	return filepath.Join(root, featureType, split)
}

// ShardName formats the file name of the n-th shard.
func ShardName(n int) string {
	return fmt.Sprintf("shard-%06d.tar", n)
}

// DiscoverShards returns the shard files beneath dir in lexical order,
// which is the order their samples are concatenated in.
func DiscoverShards(dir string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover shards: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoShards, dir)
	}
	sort.Strings(entries)
	return entries, nil
}
