package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/cli"
)

func TestCatalogCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`
champions:
  - id: champion.sw1.droideka
    name: Droideka
bosses:
  - id: boss.sw1.grievous
    name: General Grievous
`), 0600))

	ok := cli.Run(context.Background(), []string{"t3rn", "catalog", "--catalog", path})
	gt.True(t, ok == nil)

	err := cli.Run(context.Background(), []string{"t3rn", "catalog", "--catalog", filepath.Join(t.TempDir(), "missing.yaml")})
	gt.True(t, err != nil)
	gt.Equal(t, err.Code, 1)
}

func TestServeRequiresGemini(t *testing.T) {
	t.Setenv("GEMINI_PROJECT_ID", "")
	err := cli.Run(context.Background(), []string{"t3rn", "serve", "--gemini-project", ""})
	gt.True(t, err != nil)
	gt.S(t, err.Message).Contains("gemini-project is required")
}
