package pagination_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

var cfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"defaults", "", 1, 20, 0},
		{"page numbers", "page=3&page_size=10", 3, 10, 20},
		{"clamped size", "page_size=1000", 1, 100, 0},
		{"first after", "first=5&after=" + url.QueryEscape(pagination.EncodeCursor(9)), 3, 5, 10},
		{"before", "first=5&before=" + url.QueryEscape(pagination.EncodeCursor(7)), 1, 5, 2},
		{"bad cursor falls back to page", "page=2&after=zzz", 2, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req := pagination.PageRequestFromQuery(values, cfg)

			if req.Page != tt.wantPage || req.PageSize != tt.wantSize || req.Offset() != tt.wantOffset {
				t.Errorf("page=%d size=%d offset=%d, want %d %d %d",
					req.Page, req.PageSize, req.Offset(), tt.wantPage, tt.wantSize, tt.wantOffset)
			}
		})
	}
}

func TestOrderByAlias(t *testing.T) {
	values, _ := url.ParseQuery("orderBy=-CreatedAt")
	req := pagination.PageRequestFromQuery(values, cfg)
	if len(req.Sort) != 1 || req.Sort[0].Field != "CreatedAt" || !req.Sort[0].Descending {
		t.Errorf("Sort = %v", req.Sort)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	n, err := pagination.DecodeCursor(pagination.EncodeCursor(42))
	if err != nil || n != 42 {
		t.Errorf("DecodeCursor = %d, %v", n, err)
	}
	if _, err := pagination.DecodeCursor("bm9wZQ=="); err == nil {
		t.Error("DecodeCursor accepted a cursor without the prefix")
	}
}

func TestNewPageResultFor(t *testing.T) {
	values, _ := url.ParseQuery("first=2&after=" + url.QueryEscape(pagination.EncodeCursor(1)))
	req := pagination.PageRequestFromQuery(values, cfg)

	res := pagination.NewPageResultFor([]string{"c", "d"}, 5, req)

	if res.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", res.TotalPages)
	}
	if !res.PageInfo.HasNextPage || !res.PageInfo.HasPreviousPage {
		t.Errorf("PageInfo = %+v", res.PageInfo)
	}
	if n, _ := pagination.DecodeCursor(res.PageInfo.EndCursor); n != 3 {
		t.Errorf("EndCursor offset = %d, want 3", n)
	}
}

func TestEmptyResult(t *testing.T) {
	res := pagination.NewPageResult[int](nil, 0, 1, 20)
	if res.Data == nil || res.TotalPages != 1 || res.PageInfo.HasNextPage || res.PageInfo.StartCursor != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	var req pagination.PageRequest
	if err := json.Unmarshal([]byte(`{"sort":"Name,-CreatedAt"}`), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(req.Sort) != 2 || !req.Sort[1].Descending {
		t.Errorf("Sort = %v", req.Sort)
	}
}
