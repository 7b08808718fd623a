package models

import "time"

// Model is embedded by rows that are mutated after creation.
type Model struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is what the identity gateway resolves a credential to. Username and
// Fullname are display attributes carried on live sessions.
type Identity struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Fullname string `json:"fullname"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a zero-based page request.
type Page struct {
	Number int `json:"page" form:"page"`
	Size   int `json:"size" form:"size"`
}

// Normalize clamps the page to sane bounds, using def when Size is unset.
func (p Page) Normalize(def, max int) Page {
	if def <= 0 {
		def = DefaultPageSize
	}
	if max <= 0 {
		max = MaxPageSize
	}
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = def
	}
	if p.Size > max {
		p.Size = max
	}
	return p
}

func (p Page) Offset() int {
	return p.Number * p.Size
}
