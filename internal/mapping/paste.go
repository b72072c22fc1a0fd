package mapping

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/schema"
)

// debugPayload matches a previously logged paste value such as `text: "a, b, c"`
var debugPayload = regexp.MustCompile(`(?s)^\s*text:\s*"(.*)"\s*$`)

// PasteEvent is a paste into the friendly-name field of Column
type PasteEvent struct {
	Column string `json:"column"`
	Text   string `json:"text"`
}

// ClipboardReader reads clipboard text when the paste event itself carries none
type ClipboardReader interface {
	ReadText(ctx context.Context) (string, error)
}

// ClipboardFunc adapts a function to ClipboardReader
type ClipboardFunc func(ctx context.Context) (string, error)

func (f ClipboardFunc) ReadText(ctx context.Context) (string, error) {
	return f(ctx)
}

// Distributor spreads comma-separated pastes across a category's columns
type Distributor struct {
	provider  schema.Provider
	clipboard ClipboardReader
}

// NewDistributor creates a distributor; clipboard may be nil
func NewDistributor(provider schema.Provider, clipboard ClipboardReader) *Distributor {
	return &Distributor{provider: provider, clipboard: clipboard}
}

// HandlePaste distributes event across the store in a single transition.
// It reports false when the paste is not CSV-like and should be left to the
// ordinary single-value path. Clipboard failures are never returned; only a
// failing Committer produces an error.
func (d *Distributor) HandlePaste(ctx context.Context, store *Store, event PasteEvent) (bool, error) {
	text := event.Text
	if text == "" {
		text = d.readClipboard(ctx)
	}

	if !strings.Contains(text, ",") {
		return false, nil
	}

	_, changed, err := store.Update(ctx, func(current Collection) (Collection, bool) {
		return Distribute(current, d.provider, event.Column, text)
	})
	if err != nil {
		return false, err
	}

	if changed {
		logging.WithFields(map[string]any{
			"column": event.Column,
		}).Debug("Distributed pasted values")
	}

	return changed, nil
}

func (d *Distributor) readClipboard(ctx context.Context) string {
	if d.clipboard == nil {
		return ""
	}

	text, err := d.clipboard.ReadText(ctx)
	if err != nil {
		logging.WithError(err).Debug("Clipboard unavailable, deferring to native paste")
		return ""
	}

	return text
}

// Distribute assigns the comma-separated values in text to column and the columns
// after it within the same category. The category's previous mappings are replaced
// wholesale: columns that receive no value end up unmapped. Mappings outside the
// category keep their order and content. The bool is false when nothing changed
// hands, in which case the input collection is returned as is.
func Distribute(current Collection, provider schema.Provider, column, text string) (Collection, bool) {
	slots, ok := PasteSlots(text)
	if !ok {
		return current, false
	}

	category, known := provider.LookupType(column)
	if !known {
		return current, false
	}

	columns := provider.ColumnsByCategory(category)

	start := slices.Index(columns, column)
	if start < 0 {
		return current, false
	}

	landed := make([]ColumnMapping, 0, len(slots))

	for i, value := range slots {
		target := start + i
		if target >= len(columns) {
			break
		}

		if value == "" {
			continue
		}

		landed = append(landed, ColumnMapping{
			SourceColumn: columns[target],
			FriendlyName: value,
			ColumnType:   category,
		})
	}

	if len(landed) == 0 {
		return current, false
	}

	inCategory := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		inCategory[col] = struct{}{}
	}

	kept := make([]ColumnMapping, 0, current.Len()+len(landed))
	for _, m := range current.Mappings() {
		if _, ok := inCategory[m.SourceColumn]; !ok {
			kept = append(kept, m)
		}
	}

	return NewCollection(append(kept, landed...)...), true
}

// PasteSlots splits a CSV-like paste into trimmed values, one per column slot.
// Empty fields keep their slot so `a,,b` lands b two columns after a.
// The bool is false when text has no comma or no non-empty value.
func PasteSlots(text string) ([]string, bool) {
	if !strings.Contains(text, ",") {
		return nil, false
	}

	if m := debugPayload.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	parts := strings.Split(text, ",")
	slots := make([]string, len(parts))
	usable := false

	for i, part := range parts {
		slots[i] = strings.TrimSpace(part)
		if slots[i] != "" {
			usable = true
		}
	}

	if !usable {
		return nil, false
	}

	return slots, true
}
