// Package track implements change detection for edited messages and grouping
// of deletion batches.
package track

import (
	"github.com/telewatch/telewatch/internal/content"
	"github.com/telewatch/telewatch/internal/database"
)

// EditKind classifies an observed edit for notification purposes.
type EditKind int

const (
	// EditNone means the stored record and the new payload are identical.
	EditNone EditKind = iota
	// EditMediaSwap is a media or type change without any text change.
	EditMediaSwap
	// EditCaption is a text change where the new content is a media type.
	EditCaption
	// EditText is a text change where the new content is plain text.
	EditText
	// EditGeneric covers any remaining combination.
	EditGeneric
)

// EditDelta describes which facets of a message changed in an edit.
type EditDelta struct {
	TypeChanged  bool
	TextChanged  bool
	MediaChanged bool
}

// IsNoop reports whether nothing observable changed.
func (d EditDelta) IsNoop() bool {
	return !d.TypeChanged && !d.TextChanged && !d.MediaChanged
}

// DiffEdit compares a stored record against the newly observed content.
// Text comparison distinguishes absent from empty; media comparison is by
// fingerprint and only meaningful when both sides carry one.
func DiffEdit(old *database.Message, snap content.Snapshot) EditDelta {
	return EditDelta{
		TypeChanged:  old.ContentType != snap.Type,
		TextChanged:  old.Text != snap.Text,
		MediaChanged: old.Fingerprint.Valid && snap.Fingerprint.Valid && old.Fingerprint.String != snap.Fingerprint.String,
	}
}

// Classify maps a delta to a notification kind. The four cases are mutually
// exclusive and checked in order: a pure media change renders a before/after
// comparison, then text changes split on whether the new content is plain
// text or a media caption.
func Classify(d EditDelta, newType string) EditKind {
	switch {
	case d.IsNoop():
		return EditNone
	case (d.TypeChanged || d.MediaChanged) && !d.TextChanged:
		return EditMediaSwap
	case d.TextChanged && newType != content.TypeText:
		return EditCaption
	case d.TextChanged:
		return EditText
	default:
		return EditGeneric
	}
}
