// Package skills is the thin loader for markdown "skills" with a YAML
// frontmatter header (§4.10). Parsing uses gopkg.in/yaml.v3 exclusively —
// the full library, resolving this engine's YAML-semantics open question
// (spec §9) — never a hand-rolled parser.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source identifies which of the two well-known roots a Skill was loaded from.
type Source string

const (
	SourcePersonal Source = "personal"
	SourceProject  Source = "project"
)

// Skill is one loaded markdown template.
type Skill struct {
	Name         string
	Description  string
	AllowedTools []string
	Model        string
	Content      string
	Source       Source
}

type frontmatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	AllowedTools []string `yaml:"allowedTools"`
	Model        string   `yaml:"model"`
}

// Parse splits raw into its leading "---"-delimited YAML header and the
// verbatim content that follows, validating required fields.
func Parse(raw string, source Source) (Skill, error) {
	const delim = "---"
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return Skill{}, fmt.Errorf("skills: file does not start with a %q frontmatter delimiter", delim)
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			end = i
			break
		}
	}
	if end < 0 {
		return Skill{}, fmt.Errorf("skills: unterminated frontmatter block")
	}
	header := strings.Join(lines[1:end], "\n")
	content := strings.Join(lines[end+1:], "\n")

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return Skill{}, fmt.Errorf("skills: invalid frontmatter: %w", err)
	}
	if strings.TrimSpace(fm.Name) == "" {
		return Skill{}, fmt.Errorf("skills: frontmatter requires a non-empty name")
	}
	if strings.TrimSpace(fm.Description) == "" {
		return Skill{}, fmt.Errorf("skills: frontmatter requires a non-empty description")
	}

	return Skill{
		Name:         fm.Name,
		Description:  fm.Description,
		AllowedTools: fm.AllowedTools,
		Model:        fm.Model,
		Content:      content,
		Source:       source,
	}, nil
}

// Registry is the loaded name-to-Skill lookup map.
type Registry struct {
	skills map[string]Skill
}

// Load reads every *.md file under personalDir and projectDir and returns a
// Registry; on name collision the project-sourced skill wins.
func Load(personalDir, projectDir string) (*Registry, error) {
	r := &Registry{skills: make(map[string]Skill)}
	if personalDir != "" {
		if err := r.loadDir(personalDir, SourcePersonal); err != nil {
			return nil, err
		}
	}
	if projectDir != "" {
		if err := r.loadDir(projectDir, SourceProject); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) loadDir(dir string, source Source) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("skills: reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("skills: reading %s: %w", e.Name(), err)
		}
		skill, err := Parse(string(raw), source)
		if err != nil {
			return fmt.Errorf("skills: parsing %s: %w", e.Name(), err)
		}
		existing, ok := r.skills[skill.Name]
		if ok && existing.Source == SourceProject && source == SourcePersonal {
			continue // project already won this name
		}
		r.skills[skill.Name] = skill
	}
	return nil
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// argumentsPlaceholder is the only literal substitution token recognized.
const argumentsPlaceholder = "$ARGUMENTS"

// Expand substitutes every literal occurrence of $ARGUMENTS in a skill's
// content with the concatenated argument string.
func Expand(content, arguments string) string {
	return strings.ReplaceAll(content, argumentsPlaceholder, arguments)
}
