package tool

import (
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
)

// Client contains shared resources that tools can use
type Client struct {
	Repo    repository.Repository
	Gemini  adapter.Gemini
	Storage adapter.Storage

	// Catalog is read-only
	Catalog *model.Catalog
}
