// Package doc defines the document record shared by every stage of the
// retrieval pipeline: loading, tokenizing, indexing, and hydration.
package doc

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Document is an immutable record with content-hashed identity. A textual
// change to Title or Text produces a different ID; Document values are
// never mutated in place once constructed.
type Document struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Tags  []string  `json:"tags"`
	Text  string    `json:"text"`
}

// ContentHash computes hex16(sha256(title + 0x00 + text)): the first 8
// bytes (16 hex characters) of the SHA-256 digest over the title, a NUL
// separator, and the text. This is the sole source of document identity.
func ContentHash(title, text string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// New builds a Document whose ID is derived from Title and Text per
// ContentHash, ignoring any ID the caller may have supplied elsewhere.
func New(title string, date time.Time, tags []string, text string) Document {
	return Document{
		ID:    ContentHash(title, text),
		Title: title,
		Date:  date,
		Tags:  tags,
		Text:  text,
	}
}

// WithID builds a Document with an explicit, caller-supplied ID. Used by
// loaders that trust an externally provided identifier (e.g. a
// line-delimited JSON record that already carries a valid 16-hex id).
func WithID(id, title string, date time.Time, tags []string, text string) Document {
	return Document{
		ID:    id,
		Title: title,
		Date:  date,
		Tags:  tags,
		Text:  text,
	}
}

// ContentHashValue returns the content hash of this document's current Title
// and Text. For a Document built via New or WithID from matching content,
// this equals d.ID; it will differ only if the caller forged an ID.
func (d Document) ContentHashValue() string {
	return ContentHash(d.Title, d.Text)
}

// HasTag reports whether t appears among d.Tags, compared byte-exactly
// (tag matching is case-sensitive per the source format).
func (d Document) HasTag(t string) bool {
	for _, tag := range d.Tags {
		if tag == t {
			return true
		}
	}
	return false
}

// Category returns the first " / "-delimited segment of the title, or ""
// if the title is empty. Titles follow a "Category / Subcategory" style
// hierarchy inherited from the change-log corpus format.
func (d Document) Category() string {
	if d.Title == "" {
		return ""
	}
	parts := strings.SplitN(d.Title, " / ", 2)
	return parts[0]
}

// Subcategory returns the second " / "-delimited segment of the title, or
// "" if the title has no such segment.
func (d Document) Subcategory() string {
	parts := strings.SplitN(d.Title, " / ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// EmbeddingText composes the canonical string fed to both the BM25
// tokenizer and the semantic embedder: "# <title>\n\xe3\x82\xbf\xe3\x82\xb0:
// <tags>\n\n<text>", omitting the tag line entirely when Tags is empty.
// Folding title and tags into this single string is what guarantees their
// tokens land in the BM25 postings alongside the body text.
func (d Document) EmbeddingText() string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(d.Title)
	b.WriteByte('\n')
	if len(d.Tags) > 0 {
		b.WriteString("タグ: ")
		b.WriteString(strings.Join(d.Tags, ", "))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(d.Text)
	return b.String()
}
