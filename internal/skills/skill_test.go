package skills

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSkill = `---
name: review-pr
description: Reviews a pull request for common issues.
allowedTools:
  - Read
  - Grep
model: sonnet
---
Review the following PR: $ARGUMENTS
`

func TestParseValidFrontmatter(t *testing.T) {
	s, err := Parse(sampleSkill, SourceProject)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "review-pr" || s.Description == "" {
		t.Fatalf("unexpected skill: %+v", s)
	}
	if len(s.AllowedTools) != 2 || s.AllowedTools[0] != "Read" {
		t.Fatalf("unexpected allowedTools: %v", s.AllowedTools)
	}
	if s.Model != "sonnet" {
		t.Fatalf("expected model sonnet, got %q", s.Model)
	}
	if s.Content != "Review the following PR: $ARGUMENTS\n" {
		t.Fatalf("unexpected content: %q", s.Content)
	}
}

func TestParseMissingDelimiterFails(t *testing.T) {
	if _, err := Parse("no frontmatter here", SourceProject); err == nil {
		t.Fatal("expected an error for a file with no frontmatter delimiter")
	}
}

func TestParseUnterminatedFrontmatterFails(t *testing.T) {
	raw := "---\nname: x\ndescription: y\n"
	if _, err := Parse(raw, SourceProject); err == nil {
		t.Fatal("expected an error for an unterminated frontmatter block")
	}
}

func TestParseRequiresNameAndDescription(t *testing.T) {
	raw := "---\nname: x\n---\nbody\n"
	if _, err := Parse(raw, SourceProject); err == nil {
		t.Fatal("expected an error when description is missing")
	}
}

func TestExpandSubstitutesArguments(t *testing.T) {
	got := Expand("do $ARGUMENTS now", "the thing")
	if got != "do the thing now" {
		t.Fatalf("unexpected expansion: %q", got)
	}
}

func TestExpandLeavesContentUnchangedWithoutPlaceholder(t *testing.T) {
	got := Expand("static content", "ignored")
	if got != "static content" {
		t.Fatalf("expected unchanged content, got %q", got)
	}
}

func writeSkillFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadProjectOverridesPersonalOnNameCollision(t *testing.T) {
	personalDir := t.TempDir()
	projectDir := t.TempDir()

	personal := "---\nname: shared\ndescription: personal version\n---\npersonal body\n"
	project := "---\nname: shared\ndescription: project version\n---\nproject body\n"
	writeSkillFile(t, personalDir, "shared.md", personal)
	writeSkillFile(t, projectDir, "shared.md", project)

	reg, err := Load(personalDir, projectDir)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := reg.Get("shared")
	if !ok {
		t.Fatal("expected the shared skill to be loaded")
	}
	if s.Description != "project version" || s.Source != SourceProject {
		t.Fatalf("expected project skill to win the collision, got %+v", s)
	}
}

func TestLoadIgnoresNonMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "README.txt", "not a skill")
	writeSkillFile(t, dir, "real.md", sampleSkill)

	reg, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get("review-pr"); !ok {
		t.Fatal("expected the markdown skill to load")
	}
}

func TestLoadToleratesMissingDirectories(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist"), ""); err != nil {
		t.Fatalf("expected a missing directory to be tolerated, got %v", err)
	}
}
