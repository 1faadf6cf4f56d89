package model

import "strings"

// CatalogEntry is a champion or boss in the static game catalog
type CatalogEntry struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Rarity   string `yaml:"rarity,omitempty" json:"rarity,omitempty"`
	Class    string `yaml:"class,omitempty" json:"class,omitempty"`
	Affinity string `yaml:"affinity,omitempty" json:"affinity,omitempty"`
}

// Catalog is the static reference data loaded once at startup. It is never mutated afterwards
// and is shared by all sessions.
type Catalog struct {
	Champions []CatalogEntry `yaml:"champions" json:"champions"`
	Bosses    []CatalogEntry `yaml:"bosses" json:"bosses"`
}

// ChampionNames returns champion names in catalog order
func (x *Catalog) ChampionNames() []string {
	return entryNames(x.Champions)
}

// BossNames returns boss names in catalog order
func (x *Catalog) BossNames() []string {
	return entryNames(x.Bosses)
}

// FindChampion looks up a champion by ID or case-insensitive name
func (x *Catalog) FindChampion(key string) (CatalogEntry, bool) {
	for _, e := range x.Champions {
		if e.ID == key || strings.EqualFold(e.Name, key) {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

func entryNames(entries []CatalogEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
