package model

import (
	"cloud.google.com/go/firestore"
)

// Champion is a playable character record in the knowledge store
type Champion struct {
	ID          string         `firestore:"champion_id" json:"champion_id" yaml:"champion_id"`
	Name        string         `firestore:"champion_name" json:"champion_name" yaml:"champion_name"`
	SummaryText string         `firestore:"summary_text" json:"summary_text" yaml:"summary_text"`
	SummaryJSON map[string]any `firestore:"summary_json" json:"summary_json" yaml:"summary_json"`
}

// Battle is a campaign battle record
type Battle struct {
	ID          string         `firestore:"battle_id" json:"battle_id" yaml:"battle_id"`
	Name        string         `firestore:"battle_name" json:"battle_name" yaml:"battle_name"`
	SummaryText string         `firestore:"summary_text" json:"summary_text" yaml:"summary_text"`
	SummaryJSON map[string]any `firestore:"summary_json" json:"summary_json" yaml:"summary_json"`
}

// UXRecord describes a game screen or interface element
type UXRecord struct {
	ID          string   `firestore:"id" json:"id" yaml:"id"`
	Screen      string   `firestore:"screen" json:"screen" yaml:"screen"`
	Title       string   `firestore:"title" json:"title" yaml:"title"`
	Description string   `firestore:"description" json:"description" yaml:"description"`
	Keywords    []string `firestore:"keywords" json:"keywords" yaml:"keywords"`
}

type KnowledgeCategory string

const (
	KnowledgeGeneral   KnowledgeCategory = "general"
	KnowledgeMechanics KnowledgeCategory = "mechanics"
	KnowledgeGameplay  KnowledgeCategory = "gameplay"
)

// KnowledgeChunk is a unit of the semantic knowledge base
type KnowledgeChunk struct {
	ID        string             `firestore:"id" json:"id"`
	Category  KnowledgeCategory  `firestore:"category" json:"category"`
	Title     string             `firestore:"title" json:"title"`
	Content   string             `firestore:"content" json:"content"`
	Embedding firestore.Vector32 `firestore:"embedding" json:"-"`

	// Distance is filled by vector search
	Distance float64 `firestore:"distance" json:"distance"`
}
