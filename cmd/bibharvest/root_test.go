package main

import (
	"errors"
	"testing"

	"github.com/use-agent/bibharvest/config"
	"github.com/use-agent/bibharvest/models"
)

func TestOpenEngine(t *testing.T) {
	cfg := config.Load()
	cfg.Engine = "http"

	eng, err := openEngine(cfg)
	if err != nil {
		t.Fatalf("openEngine: %v", err)
	}
	defer eng.Close()
	if eng.Name() != "http" {
		t.Errorf("Name = %q, want http", eng.Name())
	}

	cfg.Engine = "lynx"
	_, err = openEngine(cfg)
	var he *models.HarvestError
	if !errors.As(err, &he) || he.Code != models.ErrCodeBrowserLaunch {
		t.Errorf("err = %v, want %s", err, models.ErrCodeBrowserLaunch)
	}
}

func TestRootFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HARVEST_TARGET_AUTHORS", "4")
	t.Setenv("HARVEST_OUTPUT", "env.json")

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--authors", "7", "--seed", "99", "--engine", "http"}); err != nil {
		t.Fatal(err)
	}

	authors, _ := cmd.Flags().GetInt("authors")
	output, _ := cmd.Flags().GetString("output")
	seed, _ := cmd.Flags().GetUint64("seed")
	if authors != 7 || seed != 99 {
		t.Errorf("authors/seed = %d/%d, want 7/99", authors, seed)
	}
	if output != "env.json" {
		t.Errorf("output = %q, want the env default env.json", output)
	}
}

func TestRunRejectsZeroAuthors(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--authors", "0", "--engine", "http"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for --authors 0")
	}
}
