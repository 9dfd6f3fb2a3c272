package widget

import "context"

// CatalogEntry is one insertable target offered to the editor UI.
type CatalogEntry struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// CatalogLister lists the insertable targets for a widget kind. The engine
// defines only the shape; the fetch belongs to the catalog collaborator.
type CatalogLister interface {
	List(ctx context.Context, kind Kind) ([]CatalogEntry, error)
}
