package database

import (
	"fmt"
	"strings"

	"github.com/morrowstudios/herald/internal/coa"
	"github.com/morrowstudios/herald/internal/gallery"
	"github.com/morrowstudios/herald/internal/tags"
)

const topTagCount = 10

type GalleryStats struct {
	Name       string `json:"name"`
	Characters int    `json:"characters"`
}

type CollectionStats struct {
	Name  string `json:"name"`
	Coats int    `json:"coats"`
}

// Stats summarizes one database. ASCII is a plain tree rendering; Markdown
// is a report meant for a terminal markdown renderer.
type Stats struct {
	Database     string            `json:"database"`
	Type         Type              `json:"type"`
	Galleries    []GalleryStats    `json:"galleries,omitempty"`
	Collections  []CollectionStats `json:"collections,omitempty"`
	Characters   int               `json:"characters"`
	Coats        int               `json:"coats"`
	WithPortrait int               `json:"with_portrait"`
	WithImage    int               `json:"with_image"`
	TopTags      []string          `json:"top_tags,omitempty"`
	TagCounts    map[string]int    `json:"tag_counts,omitempty"`
	ASCII        string            `json:"ascii"`
	Markdown     string            `json:"markdown"`
}

// BuildStats counts a database's contents and renders the tree and report.
func BuildStats(databasesDir, name string) (*Stats, error) {
	reg, err := Ensure(databasesDir)
	if err != nil {
		return nil, err
	}
	info, ok := reg.Databases[name]
	if !ok {
		return nil, fmt.Errorf("database not found: %s", name)
	}

	s := &Stats{Database: name, Type: info.Type}
	var tagLists [][]string

	if info.Type.HasCharacters() {
		for _, g := range gallery.Load(CharacterDataDir(databasesDir, name)) {
			s.Galleries = append(s.Galleries, GalleryStats{Name: g.Name, Characters: len(g.Characters)})
			s.Characters += len(g.Characters)
			for _, c := range g.Characters {
				if c.Image != "" {
					s.WithPortrait++
				}
				tagLists = append(tagLists, c.Tags)
			}
		}
	}

	if info.Type.HasCoats() {
		for _, col := range coa.Load(CoaDataDir(databasesDir, name)) {
			s.Collections = append(s.Collections, CollectionStats{Name: col.Name, Coats: len(col.Coats)})
			s.Coats += len(col.Coats)
			for _, c := range col.Coats {
				if c.HasImage {
					s.WithImage++
				}
				tagLists = append(tagLists, c.Tags)
			}
		}
	}

	s.TagCounts = tags.Frequency(tagLists...)
	keys := tags.SortedKeys(s.TagCounts)
	if len(keys) > topTagCount {
		keys = keys[:topTagCount]
	}
	s.TopTags = keys

	s.ASCII = buildTree(s)
	s.Markdown = buildMarkdown(s)
	return s, nil
}

type treeBranch struct {
	header   string
	children []string
}

func buildTree(s *Stats) string {
	var branches []treeBranch

	if s.Type.HasCharacters() {
		b := treeBranch{header: fmt.Sprintf("characters: %d (%d with portrait)", s.Characters, s.WithPortrait)}
		for _, g := range s.Galleries {
			b.children = append(b.children, fmt.Sprintf("%s: %d", g.Name, g.Characters))
		}
		branches = append(branches, b)
	}
	if s.Type.HasCoats() {
		b := treeBranch{header: fmt.Sprintf("coats of arms: %d (%d with image)", s.Coats, s.WithImage)}
		for _, c := range s.Collections {
			b.children = append(b.children, fmt.Sprintf("%s: %d", c.Name, c.Coats))
		}
		branches = append(branches, b)
	}
	if len(s.TopTags) > 0 {
		b := treeBranch{header: "top tags"}
		for _, t := range s.TopTags {
			b.children = append(b.children, fmt.Sprintf("%s (%d)", t, s.TagCounts[t]))
		}
		branches = append(branches, b)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%s (%s)\n", dirPrefix, s.Database, s.Type))
	for bi, b := range branches {
		last := bi == len(branches)-1
		connector, indent := "├── ", "│   "
		if last {
			connector, indent = "└── ", "    "
		}
		sb.WriteString(connector + b.header + "\n")
		for ci, child := range b.children {
			childConnector := "├── "
			if ci == len(b.children)-1 {
				childConnector = "└── "
			}
			sb.WriteString(indent + childConnector + child + "\n")
		}
	}
	return sb.String()
}

func buildMarkdown(s *Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Database: %s\n\n", s.Database))
	sb.WriteString(fmt.Sprintf("Type: `%s`\n\n", s.Type))

	if s.Type.HasCharacters() {
		sb.WriteString(fmt.Sprintf("## Characters (%d)\n\n", s.Characters))
		for _, g := range s.Galleries {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", g.Name, g.Characters))
		}
		sb.WriteString(fmt.Sprintf("\n%d of %d have portraits.\n\n", s.WithPortrait, s.Characters))
	}
	if s.Type.HasCoats() {
		sb.WriteString(fmt.Sprintf("## Coats of Arms (%d)\n\n", s.Coats))
		for _, c := range s.Collections {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", c.Name, c.Coats))
		}
		sb.WriteString(fmt.Sprintf("\n%d of %d have images.\n\n", s.WithImage, s.Coats))
	}
	if len(s.TopTags) > 0 {
		sb.WriteString("## Top Tags\n\n")
		for _, t := range s.TopTags {
			sb.WriteString(fmt.Sprintf("- %s (%d)\n", t, s.TagCounts[t]))
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
