// Package site describes the structure of the bibliographic website being
// harvested: where to start, which landmarks signal a usable page and which
// links lead from the home page to an author's BibTeX export.
package site

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/bibharvest/models"
	"gopkg.in/yaml.v3"
)

//go:embed dblp.yaml
var dblpProfile []byte

// Pick strategies for choosing among a stage's candidates.
const (
	PickRandom = "random"
	PickFirst  = "first"
)

// Profile is the site structure the navigator follows.
type Profile struct {
	Name          string `yaml:"name"`
	EntryURL      string `yaml:"entry_url"`
	EntryLandmark string `yaml:"entry_landmark"`
	Letter        Stage  `yaml:"letter"`
	Author        Stage  `yaml:"author"`
	Export        Stage  `yaml:"export"`
	Citation      string `yaml:"citation"`
}

// Stage is one "wait for landmark, choose a candidate, click" step.
type Stage struct {
	Landmark   string `yaml:"landmark"`
	Candidates string `yaml:"candidates"`

	// HrefContains keeps only candidates whose href contains this substring.
	HrefContains string `yaml:"href_contains,omitempty"`

	// Pick is "random" (uniform) or "first". Empty means random.
	Pick string `yaml:"pick,omitempty"`
}

// Default returns the built-in dblp profile.
func Default() *Profile {
	p, err := Parse(dblpProfile)
	if err != nil {
		panic(fmt.Sprintf("site: built-in profile is invalid: %v", err))
	}
	return p
}

// Load reads a profile from path, or returns Default when path is empty.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeInvalidProfile, "failed to read site profile", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeInvalidProfile, "failed to decode site profile", err)
	}
	if err := p.Validate(); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeInvalidProfile, "site profile "+p.Name, err)
	}
	return &p, nil
}

// Validate checks the entry URL and compiles every selector.
func (p *Profile) Validate() error {
	u, err := url.Parse(p.EntryURL)
	if err != nil {
		return fmt.Errorf("entry_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("entry_url %q must be an absolute http(s) URL", p.EntryURL)
	}

	selectors := []struct{ field, value string }{
		{"entry_landmark", p.EntryLandmark},
		{"letter.landmark", p.Letter.Landmark},
		{"letter.candidates", p.Letter.Candidates},
		{"author.landmark", p.Author.Landmark},
		{"author.candidates", p.Author.Candidates},
		{"export.landmark", p.Export.Landmark},
		{"export.candidates", p.Export.Candidates},
		{"citation", p.Citation},
	}
	for _, s := range selectors {
		if s.value == "" {
			return fmt.Errorf("%s is required", s.field)
		}
		if _, err := cascadia.ParseGroup(s.value); err != nil {
			return fmt.Errorf("%s: invalid selector %q: %w", s.field, s.value, err)
		}
	}

	for name, st := range map[string]Stage{"letter": p.Letter, "author": p.Author, "export": p.Export} {
		switch st.Pick {
		case "", PickRandom, PickFirst:
		default:
			return fmt.Errorf("%s.pick: unknown strategy %q", name, st.Pick)
		}
	}
	return nil
}
