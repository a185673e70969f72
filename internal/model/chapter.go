package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Chapter represents one page of a chapter chain.
// The index is assigned when the page's URL is discovered, not when the
// fetch completes, so it always reflects the page's position in the chain
// regardless of the order in which concurrent fetches finish.
type Chapter struct {
	// Index is the zero-based position of the chapter in its chain.
	// Along a single chain indices are strictly increasing with no gaps.
	Index int `json:"index"`

	// URL is the absolute URL the chapter was fetched from.
	URL string `json:"url"`

	// Title is the page title extracted from the <title> tag.
	// Empty if the page has no title.
	Title string `json:"title,omitempty"`

	// Content is the extracted HTML fragment of the chapter body.
	// Excluded from JSON to keep reports and database rows small;
	// the Hash field identifies the content instead.
	Content string `json:"-"`

	// Hash is the SHA-256 hash of the content fragment.
	// Used for change detection when comparing archived runs.
	Hash string `json:"hash,omitempty"`

	// FetchedAt is when the fetch for this chapter completed.
	FetchedAt time.Time `json:"fetched_at"`
}

// ComputeHash calculates and stores the SHA-256 hash of the content.
func (c *Chapter) ComputeHash() {
	sum := sha256.Sum256([]byte(c.Content))
	c.Hash = hex.EncodeToString(sum[:])
}
