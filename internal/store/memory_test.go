package store

import (
	"context"
	"errors"
	"testing"

	"github.com/splashes/splashes/internal/company"
)

func TestMemory_CRUD(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec := testRecord("123456789", "00011", "ACME")

	if err := m.Upsert(ctx, rec.ID(), rec); err != nil {
		t.Fatal(err)
	}
	rec.Name = "CHANGED"
	if err := m.Upsert(ctx, rec.ID(), rec); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get(ctx, rec.ID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "CHANGED" {
		t.Errorf("last write did not win: Name = %q", got.Name)
	}
	if n, _ := m.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	if m.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", m.Writes())
	}

	if err := m.Delete(ctx, rec.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, rec.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, rec.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemory_Search(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, rec := range []struct{ siren, name string }{
		{"333333333", "BOULANGERIE MARTIN"},
		{"111111111", "GARAGE DUPONT"},
		{"222222222", "BOULANGERIE DURAND"},
	} {
		r := testRecord(rec.siren, "00011", rec.name)
		if err := m.Upsert(ctx, r.ID(), r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		size  int
		want  []string
	}{
		{"boulangerie", 10, []string{"22222222200011", "33333333300011"}},
		{"boulangerie", 1, []string{"22222222200011"}},
		{"", 10, []string{"11111111100011", "22222222200011", "33333333300011"}},
		{"111111111", 10, []string{"11111111100011"}},
		{"nothing", 10, nil},
	}

	for _, tt := range tests {
		got, err := m.Search(ctx, tt.query, tt.size)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", tt.query, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("Search(%q, %d) returned %d records, want %d", tt.query, tt.size, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].Siret != tt.want[i] {
				t.Errorf("Search(%q)[%d] = %s, want %s", tt.query, i, got[i].Siret, tt.want[i])
			}
		}
	}
}

func TestMemory_UpdateByQuery(t *testing.T) {
	ctx := context.Background()
	lookup := map[string]string{"6201Z": "Programmation informatique"}

	seed := func() *Memory {
		m := NewMemory()
		a := testRecord("111111111", "00011", "A")
		b := testRecord("222222222", "00022", "B")
		b.APELabel = "Existing label"
		c := testRecord("333333333", "00033", "C")
		c.APE = "9999Z"
		d := testRecord("444444444", "00044", "D")
		d.APE = ""
		for _, r := range []*company.Record{a, b, c, d} {
			if err := m.Upsert(ctx, r.ID(), r); err != nil {
				t.Fatal(err)
			}
		}
		return m
	}

	t.Run("all documents", func(t *testing.T) {
		m := seed()
		result, err := m.UpdateByQuery(ctx, Denormalization{Source: "ape", Target: "ape_label", Lookup: lookup})
		if err != nil {
			t.Fatal(err)
		}
		if result.Total != 3 || result.Updated != 2 || result.Noops != 1 || len(result.Failures) != 0 {
			t.Errorf("result = %+v", result)
		}
		got, _ := m.Get(ctx, "22222222200022")
		if got.APELabel != "Programmation informatique" {
			t.Errorf("APELabel = %q", got.APELabel)
		}
	})

	t.Run("only missing", func(t *testing.T) {
		m := seed()
		result, err := m.UpdateByQuery(ctx, Denormalization{Source: "ape", Target: "ape_label", Lookup: lookup, OnlyMissing: true})
		if err != nil {
			t.Fatal(err)
		}
		if result.Updated != 1 {
			t.Errorf("Updated = %d, want 1", result.Updated)
		}
		got, _ := m.Get(ctx, "22222222200022")
		if got.APELabel != "Existing label" {
			t.Errorf("existing target overwritten: %q", got.APELabel)
		}
	})

	t.Run("failures are reported", func(t *testing.T) {
		m := seed()
		result, err := m.UpdateByQuery(ctx, Denormalization{Source: "ape", Target: "workforce", Lookup: lookup})
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Failures) != 2 || result.Updated != 0 {
			t.Errorf("result = %+v, want 2 failures", result)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		m := seed()
		if _, err := m.UpdateByQuery(ctx, Denormalization{Source: "ape", Target: "ape_label"}); err == nil {
			t.Error("expected error for empty lookup")
		}
	})
}
