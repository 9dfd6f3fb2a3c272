package wiki

import "strings"

// BreadcrumbPlaceholder is returned when a result has no resolvable parent.
const BreadcrumbPlaceholder = "-"

// Search returns the records whose title contains the query, matched
// case-insensitively. Search is opt-in: an empty query yields no results, not
// the full set. Input ordering is preserved; there is no relevance ranking.
func Search(records []Page, query string) []Page {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	var matches []Page
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.Title), needle) {
			matches = append(matches, record)
		}
	}
	return matches
}

// Breadcrumb resolves the title of the record's parent within the same flat
// set. An unresolvable parent yields the placeholder rather than an error.
func Breadcrumb(records []Page, page Page) string {
	if page.ParentID == nil {
		return BreadcrumbPlaceholder
	}
	for _, record := range records {
		if record.ID == *page.ParentID {
			return record.Title
		}
	}
	return BreadcrumbPlaceholder
}
