package assets

// SearchQuery filters the asset catalog. Empty Kind matches every kind.
type SearchQuery struct {
	Query    string
	Kind     Kind
	Page     int
	PageSize int
}

// Normalize clamps paging to sane defaults.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	if q.PageSize > 50 {
		q.PageSize = 50
	}
	return q
}

// Offset of the first row for the current page.
func (q SearchQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Asset `json:"data"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	Total      int64    `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
}

// NewPage fills the paging metadata for one page of results.
func NewPage(q SearchQuery, data []*Asset, total int64) *PaginatedResult {
	pages := 0
	if q.PageSize > 0 {
		pages = int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	}
	return &PaginatedResult{Data: data, Page: q.Page, PageSize: q.PageSize, Total: total, TotalPages: pages}
}
