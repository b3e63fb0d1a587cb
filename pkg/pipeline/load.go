package pipeline

import (
	"context"
	"os"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/httputil"
)

// Load reads each source in order. Sources that are http(s) URLs are
// downloaded with f; everything else is read from disk. A nil f rejects
// URLs.
func Load(ctx context.Context, sources []string, f *httputil.Fetcher) ([]Input, error) {
	inputs := make([]Input, 0, len(sources))
	for _, src := range sources {
		if !httputil.IsURL(src) {
			in, err := LoadFile(src)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, in)
			continue
		}
		if f == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "%s: remote feeds are not enabled", src)
		}
		body, err := f.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, Input{Name: src, Text: string(body)})
	}
	return inputs, nil
}

// LoadFiles reads paths in order and returns them as inputs named by path.
func LoadFiles(paths []string) ([]Input, error) {
	return Load(context.Background(), paths, nil)
}

// LoadFile reads one document from disk.
func LoadFile(path string) (Input, error) {
	if err := errors.ValidatePath(path); err != nil {
		return Input{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Input{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
	}
	if err != nil {
		return Input{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	return Input{Name: path, Text: string(data)}, nil
}
