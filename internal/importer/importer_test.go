package importer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/puntogamer/gamestore/internal/catalog"
	"github.com/puntogamer/gamestore/internal/db"
	"github.com/puntogamer/gamestore/internal/migrations"
	"github.com/puntogamer/gamestore/internal/pricing"
	"github.com/puntogamer/gamestore/internal/reconcile"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "importer-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return catalog.NewStore(database)
}

var testSettings = pricing.Settings{
	GlobalMargin: 30,
	VATRate:      21,
	ExchangeRate: 1200,
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"God of War Ragnarok", "god-of-war-ragnarok"},
		{"  FIFA 24  ", "fifa-24"},
		{"Ratchet & Clank: Rift Apart", "ratchet-clank-rift-apart"},
		{"Mario -- Kart", "mario-kart"},
		{"---", ""},
		{"Crash Bandicoot 4: It's About Time!", "crash-bandicoot-4-its-about-time"},
	}

	for _, c := range cases {
		if got := Slugify(c.name); got != c.want {
			t.Fatalf("Slugify(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestBulkImportCreatesPricedProducts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	im := New(store, 0)

	candidates := []reconcile.Candidate{
		{SKU: "7791", Name: "God of War Ragnarok", CostPrice: 60, Currency: pricing.CurrencyForeign, Platform: "PS5"},
		{SKU: "7792", Name: "Sin precio", CostPrice: 0, Currency: pricing.CurrencyForeign},
		{SKU: "7793", Name: "", CostPrice: 30, Currency: pricing.CurrencyForeign},
		{SKU: "7794", Name: "Mario Kart World", CostPrice: 80, Currency: pricing.CurrencyForeign, Platform: "Switch 2"},
	}

	created, skipped, err := im.BulkImport(context.Background(), candidates, testSettings, nil)
	if err != nil {
		t.Fatalf("bulk import: %v", err)
	}
	if created != 2 || skipped != 2 {
		t.Fatalf("created=%d skipped=%d, want 2 and 2", created, skipped)
	}

	all, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}

	bySKU := map[string]catalog.Product{}
	for _, p := range all {
		bySKU[p.SKU] = p
	}

	gow := bySKU["7791"]
	if gow.ID == "" {
		t.Fatal("product id not assigned")
	}
	if gow.Slug != "god-of-war-ragnarok" {
		t.Fatalf("unexpected slug: %q", gow.Slug)
	}
	if !gow.Stock || gow.IsHidden {
		t.Fatalf("imported product must start in stock and visible: %+v", gow)
	}
	if gow.CreatedAt == "" {
		t.Fatal("creation timestamp not set")
	}
	// 60 * 1200 * 1.30 = 93600.
	if gow.BasePrice != 93600 || gow.Price != 93600 {
		t.Fatalf("unexpected prices: %+v", gow)
	}
}

func TestBulkImportProgressPhases(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	im := New(store, 2)

	candidates := make([]reconcile.Candidate, 5)
	for i := range candidates {
		candidates[i] = reconcile.Candidate{
			SKU:       "sku-" + string(rune('a'+i)),
			Name:      "Juego " + string(rune('A'+i)),
			CostPrice: 10,
			Currency:  pricing.CurrencyForeign,
		}
	}

	var phases []Phase
	var lastDone int
	created, _, err := im.BulkImport(context.Background(), candidates, testSettings, func(p Progress) {
		phases = append(phases, p.Phase)
		if p.Done < lastDone {
			t.Fatalf("progress went backwards: %d after %d", p.Done, lastDone)
		}
		lastDone = p.Done
	})
	if err != nil {
		t.Fatalf("bulk import: %v", err)
	}
	if created != 5 {
		t.Fatalf("expected 5 created, got %d", created)
	}

	if len(phases) == 0 || phases[len(phases)-1] != PhaseDone {
		t.Fatalf("expected terminal done phase, got %v", phases)
	}
	committing := 0
	for _, ph := range phases {
		if ph == PhaseCommitting {
			committing++
		}
		if ph == PhaseFailed {
			t.Fatalf("unexpected failed phase: %v", phases)
		}
	}
	// One announcement plus one report per batch (5 records / size 2 = 3).
	if committing != 4 {
		t.Fatalf("expected 4 committing reports, got %d (%v)", committing, phases)
	}
}

func TestRecalculateAllUpdatesOnlyChangedItems(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	im := New(store, 0)
	ctx := context.Background()

	manual := 50000.0
	seedProducts := []catalog.Product{
		{
			ID: "p1", SKU: "1", Name: "Repriced", Slug: "repriced",
			CostPrice: 60, Currency: pricing.CurrencyForeign,
			BasePrice: 93600, Price: 93600, Stock: true,
		},
		{
			ID: "p2", SKU: "2", Name: "Manual", Slug: "manual",
			CostPrice: 60, Currency: pricing.CurrencyForeign, ManualPrice: &manual,
			BasePrice: 50000, Price: 50000, Stock: true,
		},
	}
	if _, err := store.InsertBatch(ctx, seedProducts, 0, nil); err != nil {
		t.Fatalf("seed products: %v", err)
	}

	// Same settings: everything is already consistent, nothing to write.
	updated, err := im.RecalculateAll(ctx, testSettings, nil)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected 0 updates under unchanged settings, got %d", updated)
	}

	// Raise the exchange rate: the cost-priced item moves, the manual one
	// stays pinned.
	changed := testSettings
	changed.ExchangeRate = 1300
	updated, err = im.RecalculateAll(ctx, changed, nil)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 update after rate change, got %d", updated)
	}

	p1, err := store.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get p1: %v", err)
	}
	// 60 * 1300 * 1.30 = 101400.
	if p1.BasePrice != 101400 || p1.Price != 101400 {
		t.Fatalf("unexpected recalculated prices: %+v", p1)
	}
	p2, err := store.GetByID(ctx, "p2")
	if err != nil {
		t.Fatalf("get p2: %v", err)
	}
	if p2.Price != 50000 {
		t.Fatalf("manual-priced item drifted: %+v", p2)
	}

	// Re-running under the new settings is a no-op: prices are re-derivable.
	updated, err = im.RecalculateAll(ctx, changed, nil)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected idempotent recalculation, got %d updates", updated)
	}
}
