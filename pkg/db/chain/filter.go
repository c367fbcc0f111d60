package chain

import (
	"fmt"
	"strings"
)

// Direction selects which side of a transfer or transaction must match the address.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionAll      Direction = "all"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionSent, DirectionReceived, DirectionAll:
		return true
	}
	return false
}

// SortOrder represents the sort direction for queries
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// Valid reports whether o is a known sort order.
func (o SortOrder) Valid() bool {
	return o == SortOrderAsc || o == SortOrderDesc
}

func (o SortOrder) sql() string {
	if o == SortOrderAsc {
		return "ASC"
	}
	return "DESC"
}

// AccountFilter scopes an account scan. Address must already be lowercase.
type AccountFilter struct {
	ChainID   uint64
	Address   string
	Direction Direction
	Order     SortOrder
	Limit     int
}

// addressClause returns the WHERE fragment matching the address on the filter's direction.
func (f AccountFilter) addressClause() (string, []any) {
	switch f.Direction {
	case DirectionSent:
		return `"from" = ?`, []any{f.Address}
	case DirectionReceived:
		return `"to" = ?`, []any{f.Address}
	default:
		return `("from" = ? OR "to" = ?)`, []any{f.Address, f.Address}
	}
}

// orderClause orders by block then key, both in the requested direction.
func (f AccountFilter) orderClause(key string) string {
	dir := f.Order.sql()
	return fmt.Sprintf(`ORDER BY "block_num" %s, "%s" %s`, dir, key, dir)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
