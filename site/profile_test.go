package site

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/bibharvest/models"
)

func TestDefault(t *testing.T) {
	p := Default()

	if p.EntryURL != "https://dblp.org/" {
		t.Errorf("EntryURL = %q", p.EntryURL)
	}
	if p.Letter.HrefContains != "pers" {
		t.Errorf("Letter.HrefContains = %q, want pers", p.Letter.HrefContains)
	}
	if p.Export.Pick != PickFirst {
		t.Errorf("Export.Pick = %q, want first", p.Export.Pick)
	}
	if p.Citation != ".verbatim" {
		t.Errorf("Citation = %q", p.Citation)
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "dblp" {
		t.Errorf("Name = %q, want dblp", p.Name)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.yaml")
	data := strings.ReplaceAll(string(dblpProfile), "https://dblp.org/", "https://dblp.uni-trier.de/")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.EntryURL != "https://dblp.uni-trier.de/" {
		t.Errorf("EntryURL = %q", p.EntryURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assertProfileError(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
	}{
		{"relative entry url", [2]string{"https://dblp.org/", "/home"}},
		{"bad selector", [2]string{"citation: .verbatim", "citation: \"pre[class\""}},
		{"missing citation", [2]string{"citation: .verbatim", ""}},
		{"unknown pick", [2]string{"pick: first", "pick: last"}},
		{"not yaml", [2]string{"name: dblp", "name: [dblp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(string(dblpProfile), tt.replace[0], tt.replace[1], 1)
			_, err := Parse([]byte(data))
			assertProfileError(t, err)
		})
	}
}

func assertProfileError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var he *models.HarvestError
	if !errors.As(err, &he) || he.Code != models.ErrCodeInvalidProfile {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeInvalidProfile)
	}
}
