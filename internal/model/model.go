// Package model holds the reactive data model: the map center, the current
// image list, the filter text and the notification state, plus the values
// derived from them.
package model

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/photomap/photomap/internal/notification"
	"github.com/photomap/photomap/internal/reactive"
	"github.com/photomap/photomap/internal/util"
	"github.com/photomap/photomap/pkg/core"
)

// ImageEntry is one photo in the current image list. Visible is rewritten on
// every filter change for as long as the entry's list is current.
type ImageEntry struct {
	core.Photo
	Visible *reactive.Cell[bool]
}

// NewImageEntries wraps photos in visible entries, preserving order.
func NewImageEntries(photos []core.Photo) []*ImageEntry {
	entries := make([]*ImageEntry, len(photos))
	for i, p := range photos {
		entries[i] = &ImageEntry{Photo: p, Visible: reactive.NewCell(true)}
	}
	return entries
}

// Matches reports whether the entry passes filter.
func (e *ImageEntry) Matches(filter string) bool {
	return filter == "" || util.ContainsFold(e.Name, filter)
}

// Snapshot is a copy of the model's observable state that can be read from
// any goroutine.
type Snapshot struct {
	Center       core.GeoPoint
	CenterText   string
	Total        int
	Hidden       int
	Filter       string
	Summary      string
	Notification notification.State
}

// Model is the set of observable cells shared by every component. It must
// only be touched from the event loop, except Snapshot.
type Model struct {
	Center       *reactive.Cell[core.GeoPoint]
	Images       *reactive.Cell[[]*ImageEntry]
	Filter       *reactive.Cell[string]
	Notification *reactive.Cell[notification.State]

	CenterText *reactive.Computed[string]
	Summary    *reactive.Computed[string]

	visibleSubs []reactive.Unsubscribe
	snapshot    atomic.Pointer[Snapshot]
}

// New creates a Model centered on center with an empty image list.
func New(center core.GeoPoint) *Model {
	m := &Model{
		Center:       reactive.NewCell(center),
		Images:       reactive.NewCell[[]*ImageEntry](nil),
		Filter:       reactive.NewCell(""),
		Notification: reactive.NewCell(notification.Cleared),
	}

	m.CenterText = reactive.NewComputed(func() string {
		return FormatCenter(m.Center.Get())
	})
	reactive.DependOn(m.CenterText, m.Center)

	m.Summary = reactive.NewComputed(func() string {
		return FormatSummary(m.Images.Get())
	})
	m.Images.Subscribe(func(entries []*ImageEntry) {
		m.trackVisibility(entries)
		m.Summary.Recompute()
	})

	m.CenterText.Subscribe(func(string) { m.publish() })
	m.Summary.Subscribe(func(string) { m.publish() })
	m.Filter.Subscribe(func(string) { m.publish() })
	m.Notification.Subscribe(func(notification.State) { m.publish() })
	m.publish()

	return m
}

// trackVisibility moves the summary's dependency from the previous entries'
// visibility cells to those of entries.
func (m *Model) trackVisibility(entries []*ImageEntry) {
	for _, unsub := range m.visibleSubs {
		unsub()
	}
	m.visibleSubs = m.visibleSubs[:0]
	for _, e := range entries {
		m.visibleSubs = append(m.visibleSubs, reactive.DependOn(m.Summary, e.Visible))
	}
}

// ApplyFilter rewrites every entry's visibility for filter.
func (m *Model) ApplyFilter(filter string) {
	for _, e := range m.Images.Get() {
		e.Visible.Set(e.Matches(filter))
	}
}

// Snapshot returns the last published state. Safe for concurrent use.
func (m *Model) Snapshot() Snapshot {
	if s := m.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

func (m *Model) publish() {
	entries := m.Images.Get()
	hidden := 0
	for _, e := range entries {
		if !e.Visible.Get() {
			hidden++
		}
	}
	m.snapshot.Store(&Snapshot{
		Center:       m.Center.Get(),
		CenterText:   m.CenterText.Get(),
		Total:        len(entries),
		Hidden:       hidden,
		Filter:       m.Filter.Get(),
		Summary:      m.Summary.Get(),
		Notification: m.Notification.Get(),
	})
}

// FormatCenter renders the human readable center description.
func FormatCenter(p core.GeoPoint) string {
	return "Latitude: " + util.FormatCoordinate(p.Lat) + ", Longitude: " + util.FormatCoordinate(p.Lng)
}

// FormatSummary renders the "N filtered out" line. It is empty for an empty
// list; otherwise the visible names follow, duplicates collapsed.
func FormatSummary(entries []*ImageEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.Visible.Get() {
			names = append(names, e.Name)
		}
	}
	return fmt.Sprintf("(%d/%d filtered out) %s",
		len(entries)-len(names), len(entries), strings.Join(util.Distinct(names), " | "))
}
