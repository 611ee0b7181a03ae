// Package search finds characters and coats of arms across the active
// databases, ranking hits by how directly they match the query.
package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/morrowstudios/herald/internal/coa"
	"github.com/morrowstudios/herald/internal/database"
	"github.com/morrowstudios/herald/internal/gallery"
)

type MatchTier int

const (
	MatchExactName MatchTier = iota // highest relevance
	MatchNameSubstring
	MatchTag
	MatchBody // DNA text or coat-of-arms code
	MatchRecent
)

func (m MatchTier) TierLabel() string {
	switch m {
	case MatchExactName:
		return "name"
	case MatchNameSubstring:
		return "partial-name"
	case MatchTag:
		return "tag"
	case MatchBody:
		return "body"
	case MatchRecent:
		return "recent"
	default:
		return "unknown"
	}
}

func (m MatchTier) IsStrong() bool {
	return m <= MatchNameSubstring
}

// Kind selects which asset types a query covers.
type Kind string

const (
	KindAny       Kind = ""
	KindCharacter Kind = "character"
	KindCoA       Kind = "coa"
)

// Hit is one matching asset.
type Hit struct {
	Kind      Kind
	ID        string
	Name      string
	Container string // gallery or collection name
	Database  string
	Tags      []string
	Tier      MatchTier
	Modified  time.Time
}

// Query describes what to look for. An empty query returns the most
// recently modified assets instead.
type Query struct {
	Text    string
	Tags    []string
	Kind    Kind
	MaxHits int // 0 = default (20)
}

type Result struct {
	Query Query
	Hits  []Hit
}

// Find runs a query against the active character and coat-of-arms
// databases.
func Find(databasesDir string, q Query) (*Result, error) {
	reg, err := database.Ensure(databasesDir)
	if err != nil {
		return nil, err
	}

	if q.Text == "" && len(q.Tags) == 0 {
		return byRecent(databasesDir, reg, q)
	}

	scored := map[string]Hit{}

	if q.Kind == KindAny || q.Kind == KindCharacter {
		dbName := reg.CurrentCharacterDB
		dataDir := database.CharacterDataDir(databasesDir, dbName)
		for _, g := range gallery.Load(dataDir) {
			for _, c := range g.Characters {
				tier, ok := classify(c.Name, c.DNA, c.Tags, q)
				if !ok {
					continue
				}
				record(scored, Hit{
					Kind: KindCharacter, ID: c.ID, Name: c.Name,
					Container: g.Name, Database: dbName,
					Tags: c.Tags, Tier: tier, Modified: c.Modified,
				})
			}
		}
	}

	if q.Kind == KindAny || q.Kind == KindCoA {
		dbName := reg.CurrentCoADB
		dataDir := database.CoaDataDir(databasesDir, dbName)
		for _, col := range coa.Load(dataDir) {
			for _, c := range col.Coats {
				tier, ok := classify(c.Name, c.Code, c.Tags, q)
				if !ok {
					continue
				}
				record(scored, Hit{
					Kind: KindCoA, ID: c.ID, Name: c.Name,
					Container: col.Name, Database: dbName,
					Tags: c.Tags, Tier: tier, Modified: c.Modified,
				})
			}
		}
	}

	hits := make([]Hit, 0, len(scored))
	for _, h := range scored {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Tier != hits[j].Tier {
			return hits[i].Tier < hits[j].Tier
		}
		return hits[i].Modified.After(hits[j].Modified)
	})

	limit := q.MaxHits
	if limit <= 0 {
		limit = 20
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return &Result{Query: q, Hits: hits}, nil
}

// record keeps the strongest tier seen for an asset.
func record(scored map[string]Hit, hit Hit) {
	key := string(hit.Kind) + "/" + hit.ID
	if existing, seen := scored[key]; !seen || hit.Tier < existing.Tier {
		scored[key] = hit
	}
}

// classify ranks how an asset matches the query. Query text is checked
// against the name, then tags, then the body text; query tags match any
// asset tag by substring.
func classify(name, body string, tags []string, q Query) (MatchTier, bool) {
	if q.Text != "" {
		text := strings.ToLower(q.Text)
		if strings.EqualFold(name, q.Text) {
			return MatchExactName, true
		}
		if strings.Contains(strings.ToLower(name), text) {
			return MatchNameSubstring, true
		}
		if matchesTag(tags, q.Text) {
			return MatchTag, true
		}
		if body != "" && strings.Contains(strings.ToLower(body), text) {
			return MatchBody, true
		}
	}
	for _, queryTag := range q.Tags {
		if matchesTag(tags, queryTag) {
			return MatchTag, true
		}
	}
	return 0, false
}

func matchesTag(tags []string, queryTag string) bool {
	q := strings.ToLower(queryTag)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func byRecent(databasesDir string, reg *database.Registry, q Query) (*Result, error) {
	var hits []Hit

	if q.Kind == KindAny || q.Kind == KindCharacter {
		dbName := reg.CurrentCharacterDB
		dataDir := database.CharacterDataDir(databasesDir, dbName)
		for _, g := range gallery.Load(dataDir) {
			for _, c := range g.Characters {
				hits = append(hits, Hit{
					Kind: KindCharacter, ID: c.ID, Name: c.Name,
					Container: g.Name, Database: dbName,
					Tags: c.Tags, Tier: MatchRecent, Modified: c.Modified,
				})
			}
		}
	}
	if q.Kind == KindAny || q.Kind == KindCoA {
		dbName := reg.CurrentCoADB
		dataDir := database.CoaDataDir(databasesDir, dbName)
		for _, col := range coa.Load(dataDir) {
			for _, c := range col.Coats {
				hits = append(hits, Hit{
					Kind: KindCoA, ID: c.ID, Name: c.Name,
					Container: col.Name, Database: dbName,
					Tags: c.Tags, Tier: MatchRecent, Modified: c.Modified,
				})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Modified.After(hits[j].Modified)
	})
	limit := q.MaxHits
	if limit <= 0 {
		limit = 15
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return &Result{Query: q, Hits: hits}, nil
}

// FormatTerminal renders a result for the console. Full mode expands
// each hit with its id, tags and timestamps.
func FormatTerminal(r *Result, full bool) string {
	if len(r.Hits) == 0 {
		return "No matching assets found."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Found %d matching asset(s):\n", len(r.Hits)))
	for _, h := range r.Hits {
		badge := "char"
		if h.Kind == KindCoA {
			badge = "coa"
		}
		if full {
			b.WriteString(fmt.Sprintf("\n  [%s] %s: %s\n", h.Tier.TierLabel(), badge, h.Name))
			b.WriteString(fmt.Sprintf("    ID:       %s\n", h.ID))
			b.WriteString(fmt.Sprintf("    Where:    %s (%s)\n", h.Container, h.Database))
			if len(h.Tags) > 0 {
				b.WriteString(fmt.Sprintf("    Tags:     %s\n", strings.Join(h.Tags, ", ")))
			}
			b.WriteString(fmt.Sprintf("    Modified: %s\n", h.Modified.Format("2006-01-02 15:04")))
		} else {
			b.WriteString(fmt.Sprintf("  - [%s] %s: %s (%s, %s)\n", h.Tier.TierLabel(), badge, h.Name, h.Container, h.Database))
		}
	}
	return b.String()
}
