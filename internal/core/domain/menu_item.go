package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MenuItem is a catalog entry. Orders keep copies of it, so a later price
// change in the catalog never touches an existing order.
type MenuItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageLink   string          `json:"imageLink"`
}

func (m MenuItem) Validate() error {
	if strings.TrimSpace(m.Name) == "" || m.Price.IsNegative() {
		return ErrInvalidMenuItem
	}
	return nil
}

// MenuItemPatch carries the fields of a partial update; nil means unchanged.
type MenuItemPatch struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageLink   *string          `json:"imageLink,omitempty"`
}

func (p MenuItemPatch) Apply(m MenuItem) MenuItem {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Price != nil {
		m.Price = *p.Price
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.ImageLink != nil {
		m.ImageLink = *p.ImageLink
	}
	return m
}
