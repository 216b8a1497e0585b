// Package paging slices an ordered result list into fixed-size pages with a movable cursor.
package paging

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a paginator is built with a non-positive page size.
	ErrInvalidConfig = errors.New("paging: items per page must be > 0")
	// ErrNoNextPage reports an attempt to move past the last page.
	ErrNoNextPage = errors.New("paging: no next page")
	// ErrNoPreviousPage reports an attempt to move before the first page.
	ErrNoPreviousPage = errors.New("paging: no previous page")
	// ErrIndexOutOfRange reports an absolute item index outside the list.
	ErrIndexOutOfRange = errors.New("paging: index out of range")
)

// Paginator owns an ordered item list and a 1-indexed page cursor.
// The zero value is not usable; construct with New.
type Paginator[T any] struct {
	items   []T
	perPage int
	page    int
}

// New returns a paginator positioned on the first page.
func New[T any](items []T, perPage int) (*Paginator[T], error) {
	if perPage <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConfig, perPage)
	}
	return &Paginator[T]{items: items, perPage: perPage, page: 1}, nil
}

// TotalPages returns ceil(len(items)/perPage); zero only for an empty list.
func (p *Paginator[T]) TotalPages() int {
	return (len(p.items) + p.perPage - 1) / p.perPage
}

// HasNext reports whether a page after the current one exists.
func (p *Paginator[T]) HasNext() bool {
	return p.page < p.TotalPages()
}

// HasPrevious reports whether a page before the current one exists.
func (p *Paginator[T]) HasPrevious() bool {
	return p.page > 1
}

// Next advances the cursor. It is a no-op returning ErrNoNextPage on the last page.
func (p *Paginator[T]) Next() error {
	if !p.HasNext() {
		return ErrNoNextPage
	}
	p.page++
	return nil
}

// Previous moves the cursor back. It is a no-op returning ErrNoPreviousPage on the first page.
func (p *Paginator[T]) Previous() error {
	if !p.HasPrevious() {
		return ErrNoPreviousPage
	}
	p.page--
	return nil
}

// Current returns the items of the current page. The returned slice must not be modified.
func (p *Paginator[T]) Current() []T {
	start, end := p.StartIndex(), p.EndIndex()
	if start >= end {
		return []T{}
	}
	return p.items[start:end:end]
}

// StartIndex returns the absolute index of the first item on the current page.
func (p *Paginator[T]) StartIndex() int {
	start := (p.page - 1) * p.perPage
	if start > len(p.items) {
		return len(p.items)
	}
	return start
}

// EndIndex returns the absolute index one past the last item on the current page.
func (p *Paginator[T]) EndIndex() int {
	return min(p.page*p.perPage, len(p.items))
}

// At returns the item at an absolute index.
func (p *Paginator[T]) At(index int) (T, error) {
	var zero T
	if index < 0 || index >= len(p.items) {
		return zero, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(p.items))
	}
	return p.items[index], nil
}

// Reset moves the cursor back to the first page.
func (p *Paginator[T]) Reset() {
	p.page = 1
}

// IsEmpty reports whether the list has no items.
func (p *Paginator[T]) IsEmpty() bool {
	return len(p.items) == 0
}

// Page returns the current 1-indexed page number.
func (p *Paginator[T]) Page() int { return p.page }

// PerPage returns the fixed page size.
func (p *Paginator[T]) PerPage() int { return p.perPage }

// Len returns the total number of items.
func (p *Paginator[T]) Len() int { return len(p.items) }

// Items returns the full list.
func (p *Paginator[T]) Items() []T { return p.items }

// Clone copies the cursor. The item list is shared; it is never mutated after New.
func (p *Paginator[T]) Clone() *Paginator[T] {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

type snapshot[T any] struct {
	Items   []T `json:"items"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

// MarshalJSON encodes the list together with the cursor.
func (p *Paginator[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot[T]{Items: p.items, PerPage: p.perPage, Page: p.page})
}

// UnmarshalJSON restores a paginator, clamping the cursor into [1, max(1, TotalPages)].
func (p *Paginator[T]) UnmarshalJSON(data []byte) error {
	var s snapshot[T]
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s.PerPage <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidConfig, s.PerPage)
	}
	p.items = s.Items
	p.perPage = s.PerPage
	p.page = max(1, min(s.Page, max(1, p.TotalPages())))
	return nil
}
