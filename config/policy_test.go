package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUnboundedPolicyAllowsAnything(t *testing.T) {
	p := Unbounded
	if !p.AllowsAge(365 * 24 * time.Hour) {
		t.Fatal("expected unbounded policy to allow any age")
	}
	if !p.AllowsCount(1_000_000) {
		t.Fatal("expected unbounded policy to allow any count")
	}
}

func TestAllowsAgeRespectsMaxAge(t *testing.T) {
	p := EscrowPolicy{MaxAge: time.Hour}
	if !p.AllowsAge(30 * time.Minute) {
		t.Fatal("expected an entry younger than max_age to be allowed")
	}
	if p.AllowsAge(2 * time.Hour) {
		t.Fatal("expected an entry older than max_age to be rejected")
	}
}

func TestAllowsCountRespectsMaxEntries(t *testing.T) {
	p := EscrowPolicy{MaxEntries: 3}
	if !p.AllowsCount(3) {
		t.Fatal("expected the 3rd attempt to be allowed under max_entries=3")
	}
	if p.AllowsCount(4) {
		t.Fatal("expected the 4th attempt to be rejected under max_entries=3")
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "escrow.yaml")
	if err := os.WriteFile(path, []byte("max_age: 10m\nmax_entries: 50\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.MaxAge != 10*time.Minute || p.MaxEntries != 50 {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestLoadRejectsNegativeMaxEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "escrow.yaml")
	if err := os.WriteFile(path, []byte("max_entries: -1\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject a negative max_entries")
	}
}
