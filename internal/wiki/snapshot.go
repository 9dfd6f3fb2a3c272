package wiki

// Snapshot holds the flat page set fetched at one point in time. Tree and
// search views are derived from it on demand; the snapshot itself carries no
// tree logic and is never mutated after construction.
type Snapshot struct {
	pages []Page
	byID  map[int64]Page
}

// NewSnapshot copies the provided records into an immutable snapshot.
func NewSnapshot(pages []Page) Snapshot {
	copied := make([]Page, len(pages))
	copy(copied, pages)
	index := make(map[int64]Page, len(copied))
	for _, page := range copied {
		index[page.ID] = page
	}
	return Snapshot{pages: copied, byID: index}
}

// Pages returns a copy of the flat record list in fetch order.
func (s Snapshot) Pages() []Page {
	copied := make([]Page, len(s.pages))
	copy(copied, s.pages)
	return copied
}

// ByID looks up a record by its identifier.
func (s Snapshot) ByID(id int64) (Page, bool) {
	page, ok := s.byID[id]
	return page, ok
}

// Len reports the number of records in the snapshot.
func (s Snapshot) Len() int {
	return len(s.pages)
}

// Tree derives the ordered page forest from the snapshot.
func (s Snapshot) Tree() []*TreeNode {
	return BuildTree(s.pages)
}

// Search derives the filtered flat view for the given query.
func (s Snapshot) Search(query string) []Page {
	return Search(s.pages, query)
}

// BreadcrumbFor resolves the parent title for a search result.
func (s Snapshot) BreadcrumbFor(page Page) string {
	return Breadcrumb(s.pages, page)
}
