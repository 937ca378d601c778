package library

import (
	"encoding/binary"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/desertthunder/tapedeck/internal/models"
)

// Collection is an immutable set of library items ordered by AddedAt, newest first.
// Items with equal AddedAt are ordered by id.
type Collection struct {
	items   []models.LibraryItem
	index   map[string]int
	version uint64
}

// NewCollection builds a collection from items. When an id repeats, the first occurrence wins.
func NewCollection(items []models.LibraryItem) Collection {
	unique := make([]models.LibraryItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		unique = append(unique, item)
	}
	return build(unique)
}

// build sorts items in place and indexes them. items must already be unique.
func build(items []models.LibraryItem) Collection {
	slices.SortFunc(items, byRecency)

	index := make(map[string]int, len(items))
	digest := xxhash.New()
	var buf [8]byte
	for i, item := range items {
		index[item.ID] = i
		digest.WriteString(item.ID)
		binary.LittleEndian.PutUint64(buf[:], uint64(item.AddedAt.UnixNano()))
		digest.Write(buf[:])
		digest.WriteString(item.Title)
		digest.WriteString(item.Artist)
	}
	return Collection{items: items, index: index, version: digest.Sum64()}
}

func byRecency(a, b models.LibraryItem) int {
	if c := b.AddedAt.Compare(a.AddedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Items returns a copy of the items in recency order.
func (c Collection) Items() []models.LibraryItem {
	return slices.Clone(c.items)
}

// Recent returns at most n of the newest items.
func (c Collection) Recent(n int) []models.LibraryItem {
	if n <= 0 || n > len(c.items) {
		n = len(c.items)
	}
	return slices.Clone(c.items[:n])
}

func (c Collection) Get(id string) (models.LibraryItem, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.LibraryItem{}, false
	}
	return c.items[i], true
}

func (c Collection) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

func (c Collection) Len() int { return len(c.items) }

// Version fingerprints the contents. Equal collections have equal versions.
func (c Collection) Version() uint64 { return c.version }

// with returns a new collection including item, which must not already be present.
func (c Collection) with(item models.LibraryItem) Collection {
	items := make([]models.LibraryItem, 0, len(c.items)+1)
	items = append(items, c.items...)
	items = append(items, item)
	return build(items)
}

// without returns a new collection excluding id, which must be present.
func (c Collection) without(id string) Collection {
	items := make([]models.LibraryItem, 0, len(c.items))
	for _, item := range c.items {
		if item.ID != id {
			items = append(items, item)
		}
	}
	return build(items)
}
