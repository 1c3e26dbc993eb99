// Package nav moves through a list of saved documents one at a time.
package nav

import "time"

// Summary is one saved document as listed by the document store.
type Summary struct {
	ID         string    `json:"id"`
	Number     string    `json:"number"`
	Date       time.Time `json:"date"`
	PartyName  string    `json:"partyName"`
	GrandTotal float64   `json:"grandTotal"`
}

// Direction selects a navigation move.
type Direction string

const (
	First Direction = "first"
	Prev  Direction = "prev"
	Next  Direction = "next"
	Last  Direction = "last"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case First, Prev, Next, Last:
		return true
	}
	return false
}

// Cursor tracks the loaded position inside an externally ordered list. The
// list order is never changed here.
type Cursor struct {
	items []Summary
	index int
}

// NewCursor returns a cursor with nothing loaded.
func NewCursor(items []Summary) *Cursor {
	return &Cursor{items: items, index: -1}
}

// Items returns the summaries the cursor walks.
func (c *Cursor) Items() []Summary {
	return c.items
}

// Len returns the number of summaries.
func (c *Cursor) Len() int {
	return len(c.items)
}

// Index returns the loaded position or -1.
func (c *Cursor) Index() int {
	return c.index
}

// Reset replaces the list and clears the position.
func (c *Cursor) Reset(items []Summary) {
	c.items = items
	c.index = -1
}

// Unset clears the position but keeps the list.
func (c *Cursor) Unset() {
	c.index = -1
}

// Target computes where a move lands without changing the cursor. An unset
// cursor counts as past the end, so both Prev and Next land on the last item.
// Moves clamp at the ends.
func (c *Cursor) Target(d Direction) (int, bool) {
	n := len(c.items)
	if n == 0 {
		return -1, false
	}
	switch d {
	case First:
		return 0, true
	case Last:
		return n - 1, true
	case Prev:
		if c.index < 0 {
			return n - 1, true
		}
		if c.index == 0 {
			return 0, true
		}
		return c.index - 1, true
	case Next:
		if c.index < 0 || c.index >= n-1 {
			return n - 1, true
		}
		return c.index + 1, true
	}
	return -1, false
}

// Set records idx as loaded. Out of range values unset the cursor.
func (c *Cursor) Set(idx int) {
	if idx < 0 || idx >= len(c.items) {
		c.index = -1
		return
	}
	c.index = idx
}

// At returns the summary at idx.
func (c *Cursor) At(idx int) (Summary, bool) {
	if idx < 0 || idx >= len(c.items) {
		return Summary{}, false
	}
	return c.items[idx], true
}

// IndexOf finds a document id in the list.
func (c *Cursor) IndexOf(id string) int {
	for i, s := range c.items {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Remove drops a document from the list, unsetting the cursor when it pointed
// at it.
func (c *Cursor) Remove(id string) {
	idx := c.IndexOf(id)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	switch {
	case c.index == idx:
		c.index = -1
	case c.index > idx:
		c.index--
	}
}
