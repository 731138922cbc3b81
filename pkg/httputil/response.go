package httputil

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

// PaginatedResponse wraps one page of items
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// NewPagination computes page metadata. A non-positive pageSize yields zero pages.
func NewPagination(page, pageSize, total int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPages,
	}
}

// Paginate builds the list payload for a page of items
func Paginate(items interface{}, page, pageSize, total int) PaginatedResponse {
	return PaginatedResponse{
		Items:      items,
		Pagination: NewPagination(page, pageSize, total),
	}
}
