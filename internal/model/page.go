package model

import "time"

// Page is one unit of managed marketing content. The CMS's other content
// types (services, FAQs, footer blocks) follow the same shape.
type Page struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
