package otter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
)

// speechesHandler serves a fixed number of items per source, capped at the
// requested page_size.
func speechesHandler(t *testing.T, perSource map[string]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get("source")
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		n, ok := perSource[source]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if n > pageSize {
			n = pageSize
		}
		records := make([]map[string]any, n)
		for i := range records {
			records[i] = map[string]any{
				"otid":       fmt.Sprintf("%s-%d", source, i),
				"title":      fmt.Sprintf("speech %d", i),
				"created_at": int64(1000 - i),
				"duration":   60,
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"speeches": records})
	}
}

func TestGetAllSpeechesTruncationFlag(t *testing.T) {
	tests := []struct {
		name          string
		available     int
		maxSpeeches   int
		wantCount     int
		wantTruncated bool
	}{
		{"full page flags possible truncation", 3, 3, 3, true},
		{"short page does not", 3, 5, 3, false},
		{"zero max falls back to the page ceiling", 3, 0, 3, false},
		{"max above ceiling is clamped", 250, 500, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/speeches", speechesHandler(t, map[string]int{SourceOwned: tt.available}))
			c, _ := loginTestClient(t, mux)

			page, err := c.GetAllSpeeches(context.Background(), 0, SourceOwned, tt.maxSpeeches)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(page.Speeches) != tt.wantCount {
				t.Errorf("count = %d, want %d", len(page.Speeches), tt.wantCount)
			}
			if page.MaybeTruncated != tt.wantTruncated {
				t.Errorf("MaybeTruncated = %v, want %v", page.MaybeTruncated, tt.wantTruncated)
			}
		})
	}
}

func TestAggregateMergesOwnedBeforeShared(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/speeches", speechesHandler(t, map[string]int{SourceOwned: 2, SourceShared: 3}))
	c, _ := loginTestClient(t, mux)

	out, err := c.GetAllSpeechesFromAllSources(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.OwnedCount != 2 || out.SharedCount != 3 || out.TotalCount != 5 {
		t.Errorf("counts = %d/%d/%d, want 2/3/5", out.OwnedCount, out.SharedCount, out.TotalCount)
	}
	if len(out.Merged) != out.TotalCount {
		t.Fatalf("merged length %d != total %d", len(out.Merged), out.TotalCount)
	}
	for i, sp := range out.Merged {
		want := SourceShared
		if i < out.OwnedCount {
			want = SourceOwned
		}
		if sp.Source != want {
			t.Errorf("merged[%d].Source = %q, want %q", i, sp.Source, want)
		}
	}
	// Per-source arrival order survives the merge.
	if out.Merged[0].ID != "owned-0" || out.Merged[2].ID != "shared-0" {
		t.Errorf("merge order broken: %q, %q", out.Merged[0].ID, out.Merged[2].ID)
	}
}

func TestAggregateDegradesFailedSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/speeches", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("source") == SourceShared {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		speechesHandler(t, map[string]int{SourceOwned: 2})(w, r)
	})
	c, _ := loginTestClient(t, mux)

	out, err := c.GetAllSpeechesFromAllSources(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("one failed source must not fail the aggregate, got %v", err)
	}
	if out.OwnedCount != 2 {
		t.Errorf("OwnedCount = %d, want 2", out.OwnedCount)
	}
	if out.SharedCount != 0 {
		t.Errorf("SharedCount = %d, want 0", out.SharedCount)
	}
	if out.TotalCount != 2 || len(out.Merged) != 2 {
		t.Errorf("total = %d, merged = %d, want 2/2", out.TotalCount, len(out.Merged))
	}
}

func TestAggregateTruncationNote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/speeches", speechesHandler(t, map[string]int{SourceOwned: 4, SourceShared: 1}))
	c, _ := loginTestClient(t, mux)

	out, err := c.GetAllSpeechesFromAllSources(context.Background(), 0, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Notes) != 1 {
		t.Fatalf("notes = %v, want exactly one truncation note", out.Notes)
	}
	if !strings.Contains(out.Notes[0], SourceOwned) {
		t.Errorf("note %q does not name the truncated source", out.Notes[0])
	}
}
