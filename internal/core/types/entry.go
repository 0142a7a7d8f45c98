package types

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

// Hashkey returns the stable hash of an archive identity used in every cache filename.
func Hashkey(identity string) string {
	sum := md5.Sum([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// Entry is a comic archive or a library directory known to the loader.
type Entry struct {
	Identity    string // absolute path or URI
	Hashkey     string
	IsDir       bool
	CurrentPage int // last read position, owned by the caller

	nbPages atomic.Int64
}

// NewEntry creates an entry for the given identity.
func NewEntry(identity string, isDir bool) *Entry {
	return &Entry{
		Identity: identity,
		Hashkey:  Hashkey(identity),
		IsDir:    isDir,
	}
}

// PageCount returns the number of pages discovered so far, 0 if unknown.
func (e *Entry) PageCount() int {
	return int(e.nbPages.Load())
}

// SetPageCount records the number of pages discovered in the archive.
func (e *Entry) SetPageCount(n int) {
	e.nbPages.Store(int64(max(0, n)))
}

func (e *Entry) String() string {
	return e.Identity
}

// Slot is either SlotCover or a zero-based page index.
type Slot int

// SlotCover addresses the thumbnail of an entry.
const SlotCover Slot = -1

// PageSlot returns the slot for a page index.
func PageSlot(index int) Slot {
	return Slot(index)
}

// IsCover reports whether the slot addresses the cover.
func (s Slot) IsCover() bool {
	return s == SlotCover
}

// Page returns the page index of the slot, -1 for the cover.
func (s Slot) Page() int {
	return int(s)
}

func (s Slot) String() string {
	if s.IsCover() {
		return "cover"
	}
	return fmt.Sprintf("%03d", int(s))
}

// CacheKey addresses one cached image.
type CacheKey struct {
	Hashkey string
	Slot    Slot
}

// CoverKey returns the cache key of an entry's cover.
func CoverKey(hashkey string) CacheKey {
	return CacheKey{Hashkey: hashkey, Slot: SlotCover}
}

// PageKey returns the cache key of an entry's page.
func PageKey(hashkey string, index int) CacheKey {
	return CacheKey{Hashkey: hashkey, Slot: PageSlot(index)}
}

func (k CacheKey) String() string {
	return k.Hashkey + "/" + k.Slot.String()
}

// Origin tells whether a reported image came from the cache or was just produced.
type Origin int

const (
	OriginExtracted Origin = iota
	OriginCached
)

func (o Origin) String() string {
	if o == OriginCached {
		return "cached"
	}
	return "extracted"
}
