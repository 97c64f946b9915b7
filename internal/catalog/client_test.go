package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"worksync/internal/metrics"
)

type page struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor,omitempty"`
	} `json:"meta"`
	Results []map[string]interface{} `json:"results"`
}

func worksPage(nextCursor string, ids ...string) page {
	var p page
	p.Meta.Count = len(ids)
	p.Meta.NextCursor = nextCursor
	for _, id := range ids {
		p.Results = append(p.Results, map[string]interface{}{
			"id":           id,
			"updated_date": "2026-08-20T10:30:00.000000",
			"title":        "work " + id,
		})
	}
	return p
}

func newCatalogServer(t *testing.T, pages map[string]page) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/works" {
			http.NotFound(w, r)
			return
		}
		cursor := r.URL.Query().Get("cursor")
		p, ok := pages[cursor]
		if !ok {
			t.Errorf("unexpected cursor %q", cursor)
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestListWorks_ParsesRecords(t *testing.T) {
	srv, _ := newCatalogServer(t, map[string]page{
		"*": worksPage("", "W1", "W2"),
	})

	client := NewClient(srv.URL, "", "", 5*time.Second)
	got, err := client.ListWorks(context.Background(), ListParams{From: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("ListWorks: %v", err)
	}

	if len(got.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got.Records))
	}
	if got.Records[0].ID != "W1" {
		t.Errorf("expected id W1, got %q", got.Records[0].ID)
	}
	if got.Records[0].UpdatedAt.IsZero() {
		t.Errorf("expected parsed updated_date")
	}
	if len(got.Records[0].Raw) == 0 {
		t.Errorf("expected raw payload preserved")
	}
	if got.NextCursor != "" {
		t.Errorf("expected exhausted listing, got cursor %q", got.NextCursor)
	}
}

func TestListWorks_SendsModifiedSinceFilter(t *testing.T) {
	var gotFilter, gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("filter")
		gotPerPage = r.URL.Query().Get("per-page")
		_ = json.NewEncoder(w).Encode(worksPage(""))
	}))
	defer srv.Close()

	from := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	client := NewClient(srv.URL, "", "", 5*time.Second)
	if _, err := client.ListWorks(context.Background(), ListParams{From: from, PerPage: 75}); err != nil {
		t.Fatalf("ListWorks: %v", err)
	}

	if want := "from_updated_date:2026-08-23T12:00:00Z"; gotFilter != want {
		t.Errorf("filter = %q, want %q", gotFilter, want)
	}
	if gotPerPage != "75" {
		t.Errorf("per-page = %q, want 75", gotPerPage)
	}
}

func TestListWorks_AuthErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key", "", 5*time.Second)
	_, err := client.ListWorks(context.Background(), ListParams{From: time.Now()})
	if err == nil {
		t.Fatalf("expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Temporary() {
		t.Errorf("403 must not be temporary")
	}
	if !IsAuthError(err) {
		t.Errorf("expected IsAuthError for 403")
	}
}

func TestListWorks_GateRefusesAtBudget(t *testing.T) {
	srv, calls := newCatalogServer(t, map[string]page{
		"*":     worksPage("next1", "W1"),
		"next1": worksPage("", "W2"),
	})

	sink := metrics.NewMemorySink(1)
	client := NewClient(srv.URL, "", "", 5*time.Second).WithGate(sink)

	if _, err := client.ListWorks(context.Background(), ListParams{From: time.Now()}); err != nil {
		t.Fatalf("first call within budget: %v", err)
	}
	_, err := client.ListWorks(context.Background(), ListParams{From: time.Now(), Cursor: "next1"})
	if !errors.Is(err, metrics.ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("refused call must never reach the server, saw %d calls", *calls)
	}

	stats := sink.Stats()
	if stats.Calls != 1 || stats.Results != 1 || stats.Refused != 1 {
		t.Errorf("unexpected sink stats: %+v", stats)
	}
}

func TestPaginator_WalksAllPages(t *testing.T) {
	srv, calls := newCatalogServer(t, map[string]page{
		"*":    worksPage("c2", "W1", "W2"),
		"c2":   worksPage("last", "W3"),
		"last": worksPage("", "W4"),
	})

	client := NewClient(srv.URL, "", "", 5*time.Second)
	p := NewPaginator(client.ListWorks, time.Now().Add(-time.Hour), 2)

	var ids []string
	for {
		records, err := p.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(records) == 0 {
			break
		}
		for _, r := range records {
			ids = append(ids, r.ID)
		}
	}

	if want := 4; len(ids) != want {
		t.Fatalf("expected %d records, got %d (%v)", want, len(ids), ids)
	}
	if ids[0] != "W1" || ids[3] != "W4" {
		t.Errorf("records out of order: %v", ids)
	}
	if *calls != 3 {
		t.Errorf("expected 3 page fetches, got %d", *calls)
	}

	// Exhausted paginators keep returning empty without refetching.
	records, err := p.Next(context.Background())
	if err != nil || len(records) != 0 {
		t.Errorf("expected exhausted paginator, got %v / %v", records, err)
	}
	if *calls != 3 {
		t.Errorf("exhausted paginator must not refetch, saw %d calls", *calls)
	}
}

func TestPaginator_EmptyListing(t *testing.T) {
	srv, calls := newCatalogServer(t, map[string]page{
		"*": worksPage(""),
	})

	client := NewClient(srv.URL, "", "", 5*time.Second)
	p := NewPaginator(client.ListWorks, time.Now(), 50)

	records, err := p.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	if *calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", *calls)
	}
}

func TestRecordWithoutIDIsKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p page
		p.Meta.Count = 2
		p.Results = []map[string]interface{}{
			{"id": "W1", "updated_date": "2026-08-20"},
			{"title": "malformed, no id"},
		}
		_ = json.NewEncoder(w).Encode(p)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", 5*time.Second)
	got, err := client.ListWorks(context.Background(), ListParams{From: time.Now()})
	if err != nil {
		t.Fatalf("ListWorks: %v", err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("malformed records must be kept for failure accounting, got %d", len(got.Records))
	}
	if got.Records[1].ID != "" {
		t.Errorf("expected empty id on malformed record")
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(worksPage("", "W1"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", 10*time.Second)
	got, err := client.ListWorks(context.Background(), ListParams{From: time.Now()})
	if err != nil {
		t.Fatalf("expected retry to recover from 429: %v", err)
	}
	if len(got.Records) != 1 {
		t.Errorf("expected 1 record after retry, got %d", len(got.Records))
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestParseUpdatedDateLayouts(t *testing.T) {
	cases := []string{
		"2026-08-20T10:30:00Z",
		"2026-08-20T10:30:00.000000",
		"2026-08-20T10:30:00",
		"2026-08-20",
	}
	for _, c := range cases {
		if ts := parseUpdatedDate(c); ts.IsZero() {
			t.Errorf("failed to parse %q", c)
		}
	}
	if ts := parseUpdatedDate("not a date"); !ts.IsZero() {
		t.Errorf("expected zero time for garbage input, got %v", ts)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 503, Endpoint: "/works", Message: "upstream overloaded"}
	want := "catalog /works: status 503: upstream overloaded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !err.Temporary() {
		t.Errorf("503 must be temporary")
	}
}
