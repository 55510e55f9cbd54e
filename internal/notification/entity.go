// AngelaMos | 2026
// entity.go

package notification

import (
	"time"
)

type Notification struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Kind      string    `db:"kind"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

type Response struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListParams struct {
	Page       int
	PageSize   int
	UnreadOnly bool
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToResponseList(items []Notification) []Response {
	out := make([]Response, len(items))
	for i, n := range items {
		out[i] = Response{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Kind:      n.Kind,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}
