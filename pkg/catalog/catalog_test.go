package catalog_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/catalog"
)

const catalogYAML = `
champions:
  - id: champion.sw1.droideka
    name: Droideka
    rarity: epic
    class: tank
    affinity: separatist
  - id: champion.sw1.clone_trooper
    name: Clone Trooper
bosses:
  - id: boss.sw1.grievous
    name: General Grievous
`

type mockStorage struct {
	objects map[string]string
}

func (m *mockStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return nil, os.ErrPermission
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestParse(t *testing.T) {
	c, err := catalog.Parse(strings.NewReader(catalogYAML))
	gt.NoError(t, err)
	gt.Equal(t, c.ChampionNames(), []string{"Droideka", "Clone Trooper"})
	gt.Equal(t, c.BossNames(), []string{"General Grievous"})

	e, ok := c.FindChampion("droideka")
	gt.True(t, ok)
	gt.Equal(t, e.ID, "champion.sw1.droideka")

	_, ok = c.FindChampion("champion.sw1.clone_trooper")
	gt.True(t, ok)
}

func TestParseInvalid(t *testing.T) {
	_, err := catalog.Parse(strings.NewReader("champions:\n  - id: a\n"))
	gt.Error(t, err)

	_, err = catalog.Parse(strings.NewReader("champions:\n  - {id: a, name: A}\nbosses:\n  - {id: a, name: B}\n"))
	gt.Error(t, err)

	c, err := catalog.Parse(bytes.NewReader(nil))
	gt.NoError(t, err)
	gt.A(t, c.Champions).Length(0)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))

	c, err := catalog.Load(context.Background(), path, nil)
	gt.NoError(t, err)
	gt.A(t, c.Champions).Length(2)
}

func TestLoadGCS(t *testing.T) {
	var bucket string
	factory := func(ctx context.Context, b string) (adapter.Storage, error) {
		bucket = b
		return &mockStorage{objects: map[string]string{"static/catalog.yaml": catalogYAML}}, nil
	}

	c, err := catalog.Load(context.Background(), "gs://game-data/static/catalog.yaml", factory)
	gt.NoError(t, err)
	gt.Equal(t, bucket, "game-data")
	gt.A(t, c.Bosses).Length(1)

	_, err = catalog.Load(context.Background(), "gs://game-data/static/missing.yaml", factory)
	gt.Error(t, err)

	_, err = catalog.Load(context.Background(), "gs://game-data/static/catalog.yaml", nil)
	gt.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := catalog.Load(context.Background(), "", nil)
	gt.NoError(t, err)
	gt.A(t, c.Champions).Length(0)
}
