// Package resolve turns a Korean query into something the Western
// platforms can search: the original-work title and, when one can be
// recovered, its ISBN.
package resolve

import (
	"context"
	"errors"

	"bookrate/internal/isbn"
	"bookrate/internal/model"
	"bookrate/internal/platform"
)

// Resolution is what the Western platforms get to work with. An empty
// Title means resolution failed and those platforms are skipped; an
// empty ISBN means keyword search only.
type Resolution struct {
	Title string `json:"title"`
	ISBN  string `json:"isbn"`
}

// Available reports whether the Western platforms can be searched at all.
func (r *Resolution) Available() bool {
	return r != nil && r.Title != ""
}

// referencePlatform supplies original-edition metadata from the local
// catalog.
type referencePlatform interface {
	OriginalEdition(ctx context.Context, sess *platform.Session, query string) (*platform.OriginalEdition, error)
}

// Resolver carries the reference platform and the ISBN lookup chain.
type Resolver struct {
	reference referencePlatform
	lookup    *isbn.Lookup
}

// New builds a resolver over the default reference platform and lookup
// chain.
func New() *Resolver {
	return &Resolver{reference: platform.NewAladin(), lookup: isbn.NewLookup()}
}

// NewWith builds a resolver over explicit collaborators.
func NewWith(reference referencePlatform, lookup *isbn.Lookup) *Resolver {
	return &Resolver{reference: reference, lookup: lookup}
}

// Resolve maps a query to a Western-platform search target. A query with
// no Hangul passes through verbatim without touching the network. For a
// Korean query the reference catalog is consulted first; when it knows
// the original title, an ISBN lookup enriches but never blocks the
// result. When it only knows the edition ISBN, the external APIs walk
// from that edition to the original work. Anything else fails closed.
func (r *Resolver) Resolve(ctx context.Context, sess *platform.Session, query string) *Resolution {
	if !model.ContainsHangul(query) {
		return &Resolution{Title: query}
	}
	log := sess.Logger("resolver")

	edition, err := r.reference.OriginalEdition(ctx, sess, query)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			log.Warn("reference catalog lookup failed", "query", query, "error", err)
		}
		return &Resolution{}
	}

	if edition.Title != "" {
		resolution := &Resolution{Title: edition.Title}
		if found := r.lookup.GetISBN(ctx, edition.Title, edition.Author); found != "" {
			resolution.ISBN = found
			log.Debug("original edition resolved", "title", edition.Title, "isbn", found)
		} else {
			log.Debug("original edition resolved without isbn", "title", edition.Title)
		}
		return resolution
	}

	if edition.ISBN13 != "" {
		original := r.lookup.FindOriginal(ctx, edition.ISBN13, query)
		if original != nil && original.Title != "" {
			resolution := &Resolution{Title: original.Title, ISBN: original.ISBN}
			if len(original.Authors) > 0 {
				resolution.Title += " " + original.Authors[0]
			}
			if resolution.ISBN == "" {
				resolution.ISBN = r.lookup.GetISBN(ctx, original.Title, "")
			}
			log.Debug("original work resolved", "title", resolution.Title, "isbn", resolution.ISBN)
			return resolution
		}
	}

	log.Info("no original edition found", "query", query)
	return &Resolution{}
}
