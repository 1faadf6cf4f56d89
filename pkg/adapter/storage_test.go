package adapter_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/adapter"
)

func TestParseGCSURL(t *testing.T) {
	bucket, key, err := adapter.ParseGCSURL("gs://game-data/catalog/champions.yaml")
	gt.NoError(t, err)
	gt.Equal(t, bucket, "game-data")
	gt.Equal(t, key, "catalog/champions.yaml")

	_, _, err = adapter.ParseGCSURL("/local/catalog.yaml")
	gt.Error(t, err)

	_, _, err = adapter.ParseGCSURL("gs://bucket-only")
	gt.Error(t, err)

	_, _, err = adapter.ParseGCSURL("gs://bucket/")
	gt.Error(t, err)
}
