package wiki

import "testing"

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	records := []Page{
		page(1, nil, "Regole", intPtr(1)),
		page(2, nil, "Magia", intPtr(2)),
	}

	if got := Search(records, ""); len(got) != 0 {
		t.Fatalf("empty query should match nothing, got %d results", len(got))
	}
	if got := Search(records, "   "); len(got) != 0 {
		t.Fatalf("blank query should match nothing, got %d results", len(got))
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	records := []Page{
		page(1, nil, "Armi da Fuoco", intPtr(1)),
		page(2, nil, "Magia", intPtr(2)),
	}

	got := Search(records, "fuoco")
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Title != "Armi da Fuoco" {
		t.Fatalf("unexpected match %q", got[0].Title)
	}
}

func TestSearchPreservesInputOrder(t *testing.T) {
	records := []Page{
		page(3, nil, "Magia Nera", intPtr(9)),
		page(1, nil, "Magia", intPtr(1)),
		page(2, nil, "Regole", intPtr(2)),
	}

	got := Search(records, "magia")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("matches should keep input order, got ids %d, %d", got[0].ID, got[1].ID)
	}
}

func TestBreadcrumbResolvesParentTitle(t *testing.T) {
	records := []Page{
		page(1, nil, "Regole", intPtr(1)),
		page(2, int64Ptr(1), "Magia", intPtr(1)),
		page(3, int64Ptr(42), "Orphan", intPtr(1)),
	}

	if got := Breadcrumb(records, records[1]); got != "Regole" {
		t.Fatalf("expected parent title, got %q", got)
	}
	if got := Breadcrumb(records, records[0]); got != BreadcrumbPlaceholder {
		t.Fatalf("root should yield placeholder, got %q", got)
	}
	if got := Breadcrumb(records, records[2]); got != BreadcrumbPlaceholder {
		t.Fatalf("missing parent should yield placeholder, got %q", got)
	}
}

func TestSnapshotDerivesViewsWithoutMutation(t *testing.T) {
	records := []Page{
		page(1, nil, "Regole", intPtr(1)),
		page(2, int64Ptr(1), "Magia", intPtr(1)),
	}
	snapshot := NewSnapshot(records)

	records[0].Title = "Mutated"

	pages := snapshot.Pages()
	if pages[0].Title != "Regole" {
		t.Fatalf("snapshot should copy records, saw %q", pages[0].Title)
	}
	if _, ok := snapshot.ByID(2); !ok {
		t.Fatalf("expected id lookup to resolve")
	}
	roots := snapshot.Tree()
	if len(roots) != 1 || len(roots[0].Children) != 1 {
		t.Fatalf("unexpected derived tree shape")
	}
	if got := snapshot.Search("magia"); len(got) != 1 {
		t.Fatalf("expected derived search to match, got %d", len(got))
	}
	if got := snapshot.BreadcrumbFor(pages[1]); got != "Regole" {
		t.Fatalf("unexpected breadcrumb %q", got)
	}
}
