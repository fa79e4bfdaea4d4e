package model

const (
	MaxPageLimit = 100
	// MaxPage keeps Offset far from overflow at any limit.
	MaxPage = 1_000_000
)

// Page is an already validated page request. Normalize fills defaults and
// clamps the limit.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

func NewPageResult[T any](data []T, total int, p Page) PageResult[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageResult[T]{Data: data, Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}
