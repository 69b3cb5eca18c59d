// Package dbt summarizes a dbt project's manifest.json for LLM prompts.
package dbt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// MaxModels caps the number of models in a summary.
const MaxModels = 50

const (
	contextTitle   = "CURRENT DBT PROJECT MODELS:\n"
	notFoundNotice = "(dbt manifest not found. Using SQL context only.)"
)

// Manifest is the subset of manifest.json the summary reads.
type Manifest struct {
	Nodes map[string]Node `json:"nodes"`
}

// Node is one entry of the manifest's "nodes" map.
type Node struct {
	UniqueID     string    `json:"unique_id"`
	Name         string    `json:"name"`
	ResourceType string    `json:"resource_type"`
	Description  string    `json:"description"`
	DependsOn    DependsOn `json:"depends_on"`
}

type DependsOn struct {
	Nodes []string `json:"nodes"`
}

// Model is a summarized dbt model.
type Model struct {
	Name        string
	Description string
	Parents     []string
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// Models returns up to MaxModels model nodes ordered by unique id.
// Parents are the last dotted segment of each dependency.
func (m *Manifest) Models() []Model {
	keys := make([]string, 0, len(m.Nodes))
	for k := range m.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var models []Model
	for _, k := range keys {
		node := m.Nodes[k]
		if node.ResourceType != "model" {
			continue
		}

		parents := make([]string, 0, len(node.DependsOn.Nodes))
		for _, p := range node.DependsOn.Nodes {
			parents = append(parents, p[strings.LastIndex(p, ".")+1:])
		}

		models = append(models, Model{
			Name:        node.Name,
			Description: node.Description,
			Parents:     parents,
		})
		if len(models) >= MaxModels {
			break
		}
	}

	return models
}

// Context returns the prompt summary of the manifest at path. It never
// fails: a missing or unreadable manifest yields a parenthesized notice.
func Context(path string) string {
	if path == "" {
		return notFoundNotice
	}

	m, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return notFoundNotice
	}
	if err != nil {
		return fmt.Sprintf("(Error reading dbt manifest: %v)", err)
	}

	var sb strings.Builder
	sb.WriteString(contextTitle)
	for _, model := range m.Models() {
		desc := model.Description
		if desc == "" {
			desc = "No description."
		}
		parents := "None"
		if len(model.Parents) > 0 {
			parents = strings.Join(model.Parents, ", ")
		}
		fmt.Fprintf(&sb, "- Model: %s\n  Desc: %s\n  Parents: %s\n", model.Name, desc, parents)
	}

	return sb.String()
}
