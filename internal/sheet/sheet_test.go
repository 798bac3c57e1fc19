package sheet

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"$ 1.500,50", 1500.50},
		{"1.500", 1500},
		{"2 000", 2000},
		{"45,99", 45.99},
		{"$38", 38},
		{"120000", 120000},
	}

	for _, c := range cases {
		got, err := ParsePrice(c.text)
		if err != nil {
			t.Fatalf("ParsePrice(%q) returned error: %v", c.text, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("ParsePrice(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestParsePriceRejectsGarbageAndNonPositive(t *testing.T) {
	for _, text := range []string{"", "   ", "consultar", "0", "$0,00", "-500"} {
		if _, err := ParsePrice(text); err == nil {
			t.Fatalf("ParsePrice(%q) succeeded, want error", text)
		}
	}
}

func TestParseSkipsHeaderAndBlankRows(t *testing.T) {
	feed := strings.Join([]string{
		`CODIGO,NOMBRE,CATEGORIA,PRECIO`,
		`7791234567890,God of War Ragnarok,JUEGOS PS5,"$ 45,99"`,
		`,Sin codigo,JUEGOS PS4,"$ 30,00"`,
		`7790000000001,,JUEGOS PS4,"$ 30,00"`,
		`7799999999999,Mario Kart World,JUEGOS SWITCH 2,"$ 79,99"`,
	}, "\n")

	rows, err := Parse(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].ExternalID != "7791234567890" || rows[0].Name != "God of War Ragnarok" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].PriceText != "$ 79,99" {
		t.Fatalf("unexpected price text: %q", rows[1].PriceText)
	}
}

func TestParsePadsShortRows(t *testing.T) {
	rows, err := Parse(strings.NewReader("7791111111111,Juego corto\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Category != "" || rows[0].PriceText != "" {
		t.Fatalf("short row not padded: %+v", rows)
	}
}

func TestGuessPlatform(t *testing.T) {
	cases := []struct {
		category string
		want     string
	}{
		{"JUEGOS PS5", "PS5"},
		{"juegos ps4 usados", "PS4"},
		{"XBOX SERIES", "Xbox"},
		{"JUEGOS SWITCH 2", "Switch 2"},
		{"SW2 NUEVOS", "Switch 2"},
		{"JUEGOS SWITCH", "Switch"},
		{"ACCESORIOS", ""},
	}

	for _, c := range cases {
		if got := GuessPlatform(c.category); got != c.want {
			t.Fatalf("GuessPlatform(%q) = %q, want %q", c.category, got, c.want)
		}
	}
}

func TestGuessPlatformNeverReadsSwitch2AsSwitch1(t *testing.T) {
	for _, category := range []string{"SWITCH 2", "JUEGOS SWITCH2", "SW 2", "SW2"} {
		if got := GuessPlatform(category); got != "Switch 2" {
			t.Fatalf("GuessPlatform(%q) = %q, want Switch 2", category, got)
		}
	}
}

func TestFetchRequiresURL(t *testing.T) {
	_, err := Fetch(context.Background(), nil, "   ")
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
}

func TestFetchParsesRemoteFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("CODIGO,NOMBRE,CATEGORIA,PRECIO\n779,Juego,PS5,\"$ 10,00\"\n"))
	}))
	defer ts.Close()

	rows, err := Fetch(context.Background(), ts.Client(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].ExternalID != "779" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestFetchSurfacesBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	if _, err := Fetch(context.Background(), ts.Client(), ts.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
