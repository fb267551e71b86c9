package pagination_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/JaimeStill/folio/pkg/pagination"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "50")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.DefaultPageSize != 50 {
		t.Errorf("DefaultPageSize = %d, want 50", cfg.DefaultPageSize)
	}
	if cfg.MaxPageSize != 100 {
		t.Errorf("MaxPageSize = %d, want 100", cfg.MaxPageSize)
	}

	bad := pagination.Config{DefaultPageSize: 500, MaxPageSize: 10}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error when default exceeds max")
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
		wantSearch   string
		wantSort     int
	}{
		{"defaults", "", 1, 20, "", 0},
		{"explicit", "page=3&page_size=5&search=ch1&sort=-updated_at", 3, 5, "ch1", 1},
		{"clamped", "page=-1&page_size=1000", 1, 100, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req := pagination.PageRequestFromQuery(values, defaultConfig())

			if req.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", req.Page, tt.wantPage)
			}
			if req.PageSize != tt.wantPageSize {
				t.Errorf("PageSize = %d, want %d", req.PageSize, tt.wantPageSize)
			}
			gotSearch := ""
			if req.Search != nil {
				gotSearch = *req.Search
			}
			if gotSearch != tt.wantSearch {
				t.Errorf("Search = %q, want %q", gotSearch, tt.wantSearch)
			}
			if len(req.Sort) != tt.wantSort {
				t.Errorf("Sort len = %d, want %d", len(req.Sort), tt.wantSort)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		page, size, total int
		wantStart         int
		wantEnd           int
	}{
		{1, 10, 25, 0, 10},
		{3, 10, 25, 20, 25},
		{4, 10, 25, 25, 25},
		{1, 10, 0, 0, 0},
	}

	for _, tt := range tests {
		req := pagination.PageRequest{Page: tt.page, PageSize: tt.size}
		start, end := req.Window(tt.total)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("Window(%d) page %d = [%d,%d), want [%d,%d)", tt.total, tt.page, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	var fromString pagination.PageRequest
	if err := json.Unmarshal([]byte(`{"sort":"thread_id,-step"}`), &fromString); err != nil {
		t.Fatalf("unmarshal string sort: %v", err)
	}
	if len(fromString.Sort) != 2 || !fromString.Sort[1].Descending {
		t.Errorf("Sort = %+v", fromString.Sort)
	}

	var fromArray pagination.PageRequest
	if err := json.Unmarshal([]byte(`{"sort":[{"field":"step","descending":true}]}`), &fromArray); err != nil {
		t.Fatalf("unmarshal array sort: %v", err)
	}
	if len(fromArray.Sort) != 1 || fromArray.Sort[0].Field != "step" {
		t.Errorf("Sort = %+v", fromArray.Sort)
	}
}

func TestNewPageResult(t *testing.T) {
	result := pagination.NewPageResult[string](nil, 21, 1, 10)

	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}
	if result.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}

	empty := pagination.NewPageResult([]int{}, 0, 1, 10)
	if empty.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", empty.TotalPages)
	}
}
