package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plk-instructions/pkg/domain"
)

const listingHTML = `<!DOCTYPE html>
<html>
<head><title>Ruch i przewozy kolejowe - PKP Polskie Linie Kolejowe S.A.</title></head>
<body>
<div class="frame frame-type-uploads">
	<h3>Ie-1 - Instrukcja sygnalizacji</h3>
	<div class="file-list">
		<div class="file-list__item">
			<a href="/files/Ie-1-od_2025-05-20_WCAG.pdf" class="file-list__item__link" target="_blank">Instrukcja sygnalizacji <strong>Ie-1 - wersja dostosowana do zasad WCAG -</strong> obowiązuje od 20.05.2025 r.</a>
		</div>
		<div class="file-list__item">
			<a href="/files/Ie-1-od_2025-05-20.pdf" class="file-list__item__link">Instrukcja sygnalizacji <strong>Ie-1</strong> obowiązuje od 20.05.2025 r.</a>
		</div>
		<div class="file-list__item">
			<a href="/files/Ie-1-do_2025-05-19.pdf" class="file-list__item__link">Instrukcja sygnalizacji <strong>Ie-1</strong> obowiązuje od 01.01.2020 r. do 19.05.2025 r.</a>
		</div>
	</div>
</div>
<div class="frame frame-type-uploads">
	<div class="file-list">
		<div class="file-list__item">
			<a href="/files/orphan.pdf" class="file-list__item__link">No header</a>
		</div>
	</div>
</div>
<div class="frame frame-type-uploads">
	<h3>Ir-1 - Instrukcja o prowadzeniu ruchu</h3>
	<div class="file-list">
		<div class="file-list__item">
			<a href="/files/Ir-1.pdf" class="file-list__item__link">Instrukcja o prowadzeniu ruchu <strong>Ir-1</strong> obowiązuje od 01.02.2024 r.</a>
		</div>
	</div>
</div>
<div class="frame frame-type-uploads">
	<h3>Ie-1 - Instrukcja sygnalizacji (projekt)</h3>
	<div class="file-list">
		<div class="file-list__item">
			<a href="/files/Ie-1-projekt.pdf" class="file-list__item__link">Projekt instrukcji <strong>Ie-1</strong> obowiązuje od 01.01.2030 r.</a>
		</div>
	</div>
</div>
</body>
</html>`

func day(y int, m time.Month, d int) domain.Date {
	return domain.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestProcessHTML_ParsesAndMergesFiles(t *testing.T) {
	files, err := ProcessHTML(listingHTML)
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("Expected 2 files after merge, got %d", len(files))
	}

	if files[0].Number != "Ie-1" {
		t.Errorf("Expected first file 'Ie-1', got '%s'", files[0].Number)
	}
	if len(files[0].Versions) != 4 {
		t.Fatalf("Expected 4 merged Ie-1 versions, got %d", len(files[0].Versions))
	}
	if files[1].Number != "Ir-1" {
		t.Errorf("Expected second file 'Ir-1', got '%s'", files[1].Number)
	}

	wcag := files[0].Versions[0]
	if wcag.Name != "Instrukcja sygnalizacji" {
		t.Errorf("Expected name 'Instrukcja sygnalizacji', got '%s'", wcag.Name)
	}
	if wcag.Number != "Ie-1" {
		t.Errorf("Expected number 'Ie-1', got '%s'", wcag.Number)
	}
	if !wcag.WCAG {
		t.Error("Expected first version to be WCAG")
	}
	if wcag.ResourceURL != "/files/Ie-1-od_2025-05-20_WCAG.pdf" {
		t.Errorf("Expected resource URL '/files/Ie-1-od_2025-05-20_WCAG.pdf', got '%s'", wcag.ResourceURL)
	}
	if !wcag.FromDate.Equal(day(2025, 5, 20).Time) {
		t.Errorf("Expected from_date 2025-05-20, got %v", wcag.FromDate)
	}
	if !wcag.ToDate.IsZero() {
		t.Errorf("Expected no to_date, got %v", wcag.ToDate)
	}

	old := files[0].Versions[2]
	if old.WCAG {
		t.Error("Expected third version not to be WCAG")
	}
	if !old.FromDate.Equal(day(2020, 1, 1).Time) || !old.ToDate.Equal(day(2025, 5, 19).Time) {
		t.Errorf("Expected 2020-01-01..2025-05-19, got %v..%v", old.FromDate, old.ToDate)
	}
}

func TestProcessHTML_NoUploads(t *testing.T) {
	files, err := ProcessHTML(`<html><body><p>Brak instrukcji</p></body></html>`)
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected 0 files, got %d", len(files))
	}
}

func TestNumberHeader_StrippedPieces(t *testing.T) {
	files, err := ProcessHTML(`<div class="frame-type-uploads"><h3> Ie-4 <span> - WCS</span></h3></div>`)
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	// Text pieces are trimmed and joined without a separator, so " - " never appears
	if files[0].Number != "Ie-4- WCS" {
		t.Errorf("Expected 'Ie-4- WCS', got '%s'", files[0].Number)
	}
}

func TestParseVersion_InvalidDateIgnored(t *testing.T) {
	files, err := ProcessHTML(`<div class="frame-type-uploads"><h3>Ie-5 - X</h3>
<div class="file-list__item"><a class="file-list__item__link">Instrukcja <strong>Ie-5</strong> obowiązuje od 31.02.2025 r.</a></div></div>`)
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}
	v := files[0].Versions[0]
	if !v.FromDate.IsZero() {
		t.Errorf("Expected invalid date to be ignored, got %v", v.FromDate)
	}
	if v.ResourceURL != "" {
		t.Errorf("Expected empty resource URL, got '%s'", v.ResourceURL)
	}
}

func TestCurrentVersions(t *testing.T) {
	files, err := ProcessHTML(listingHTML)
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	current := CurrentVersions(files, day(2025, 6, 1))

	if len(current) != 3 {
		t.Fatalf("Expected 3 current versions, got %d", len(current))
	}
	if !current[0].WCAG || current[0].Number != "Ie-1" {
		t.Errorf("Expected Ie-1 WCAG first, got %+v", current[0])
	}
	if current[1].WCAG || current[1].ResourceURL != "/files/Ie-1-od_2025-05-20.pdf" {
		t.Errorf("Expected newest regular Ie-1 second, got %+v", current[1])
	}
	if current[2].Number != "Ir-1" {
		t.Errorf("Expected Ir-1 third, got %+v", current[2])
	}
}

func TestCurrentVersions_TieKeepsFirst(t *testing.T) {
	files := []domain.File{{
		Number: "Ie-2",
		Versions: []domain.FileVersion{
			{Name: "undated"},
			{Name: "first", FromDate: day(2024, 1, 1)},
			{Name: "second", FromDate: day(2024, 1, 1)},
		},
	}}

	current := CurrentVersions(files, day(2025, 1, 1))
	if len(current) != 1 {
		t.Fatalf("Expected 1 current version, got %d", len(current))
	}
	if current[0].Name != "first" {
		t.Errorf("Expected 'first', got '%s'", current[0].Name)
	}
}

func TestMergeDuplicates_KeepsFirstSeenOrder(t *testing.T) {
	merged := MergeDuplicates([]domain.File{
		{Number: "B", Versions: []domain.FileVersion{{Name: "b1"}}},
		{Number: "A", Versions: []domain.FileVersion{{Name: "a1"}}},
		{Number: "B", Versions: []domain.FileVersion{{Name: "b2"}}},
	})

	if len(merged) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(merged))
	}
	if merged[0].Number != "B" || len(merged[0].Versions) != 2 || merged[0].Versions[1].Name != "b2" {
		t.Errorf("Expected B with b1,b2, got %+v", merged[0])
	}
	if merged[1].Number != "A" {
		t.Errorf("Expected A second, got %+v", merged[1])
	}
}

func TestScraper_Scrape(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	page, err := New(nil, nil).Scrape(context.Background(), "ruch-i-przewozy-kolejowe", server.URL)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if gotUA != "Mozilla/5.0" {
		t.Errorf("Expected browser User-Agent, got '%s'", gotUA)
	}
	if len(page.Files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(page.Files))
	}
	if !strings.HasPrefix(page.Title, "Ruch i przewozy kolejowe") {
		t.Errorf("Expected page title, got '%s'", page.Title)
	}
}

func TestScraper_ScrapeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := New(nil, nil).Scrape(context.Background(), "missing", server.URL); err == nil {
		t.Fatal("Expected error for 404 page, got nil")
	}
}
