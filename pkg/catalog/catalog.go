package catalog

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"gopkg.in/yaml.v3"
)

// StorageFactory opens object storage for a bucket
type StorageFactory func(ctx context.Context, bucket string) (adapter.Storage, error)

// Load reads the static game catalog from a local YAML file or a gs://bucket/object URL.
// The returned catalog is shared read-only by all sessions.
func Load(ctx context.Context, path string, newStorage StorageFactory) (*model.Catalog, error) {
	if path == "" {
		return &model.Catalog{}, nil
	}

	var r io.ReadCloser
	if strings.HasPrefix(path, "gs://") {
		bucket, key, err := adapter.ParseGCSURL(path)
		if err != nil {
			return nil, err
		}
		if newStorage == nil {
			return nil, goerr.New("storage is not configured for gs:// catalog", goerr.V("path", path))
		}
		storage, err := newStorage(ctx, bucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open catalog storage", goerr.V("bucket", bucket))
		}
		if r, err = storage.Get(ctx, key); err != nil {
			return nil, goerr.Wrap(err, "failed to open catalog object", goerr.V("path", path))
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open catalog file", goerr.V("path", path))
		}
		r = f
	}
	defer r.Close()

	return Parse(r)
}

// Parse decodes a catalog YAML document and validates it
func Parse(r io.Reader) (*model.Catalog, error) {
	var c model.Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return nil, goerr.Wrap(err, "failed to parse catalog")
	}

	seen := make(map[string]struct{})
	for _, entries := range [][]model.CatalogEntry{c.Champions, c.Bosses} {
		for _, e := range entries {
			if e.ID == "" || e.Name == "" {
				return nil, goerr.New("catalog entry requires id and name", goerr.V("entry", e))
			}
			if _, ok := seen[e.ID]; ok {
				return nil, goerr.New("duplicated catalog id", goerr.V("id", e.ID))
			}
			seen[e.ID] = struct{}{}
		}
	}

	return &c, nil
}
