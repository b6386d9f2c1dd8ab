package overlay

import (
	"io"
	"log/slog"
	"testing"

	"github.com/photomap/photomap/internal/model"
	"github.com/photomap/photomap/internal/surface"
	"github.com/photomap/photomap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	opts      surface.MarkerOptions
	visible   bool
	animation surface.Animation
	released  bool
	onClick   func()
}

func (f *fakeMarker) SetVisible(v bool) { f.visible = v }
func (f *fakeMarker) SetAnimation(a surface.Animation) { f.animation = a }
func (f *fakeMarker) OnClick(fn func()) { f.onClick = fn }
func (f *fakeMarker) Release() { f.released = true; f.visible = false }

type fakeInfo struct {
	content    string
	anchor     surface.Marker
	opened     int
	closed     int
	closeClick func()
}

func (f *fakeInfo) SetContent(html string) { f.content = html }
func (f *fakeInfo) Open(a surface.Marker) { f.anchor = a; f.opened++ }
func (f *fakeInfo) Close() { f.closed++ }
func (f *fakeInfo) OnCloseClick(fn func()) { f.closeClick = fn }

type fakeMap struct {
	markers []*fakeMarker
	info    *fakeInfo
}

func (f *fakeMap) SetCenter(core.GeoPoint) {}
func (f *fakeMap) SetZoom(int) {}
func (f *fakeMap) NewMarker(opts surface.MarkerOptions) surface.Marker {
	m := &fakeMarker{opts: opts, visible: opts.Visible, animation: opts.Animation}
	f.markers = append(f.markers, m)
	return m
}
func (f *fakeMap) NewInfoWindow() surface.InfoWindow {
	f.info = &fakeInfo{}
	return f.info
}

func newTestManager(opts ...Option) (*Manager, *fakeMap) {
	fm := &fakeMap{}
	return New(fm, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...), fm
}

func entries(names ...string) []*model.ImageEntry {
	photos := make([]core.Photo, len(names))
	for i, n := range names {
		photos[i] = core.Photo{
			Name:     n,
			Position: core.GeoPoint{Lat: 6 + float64(i)/10, Lng: 79 + float64(i)/10},
			ThumbURL: "thumb/" + n,
			FullURL:  "full/" + n,
		}
	}
	return model.NewImageEntries(photos)
}

func TestRebuild_OneMarkerPerEntryInOrder(t *testing.T) {
	m, fm := newTestManager()
	list := entries("a", "b", "c")

	m.Rebuild(list)

	require.Len(t, fm.markers, 3)
	assert.Equal(t, 3, m.Placed())
	for i, e := range list {
		assert.Equal(t, e.Position, fm.markers[i].opts.Position)
		assert.Equal(t, surface.Icon{URL: e.ThumbURL, Size: DefaultIconSize}, fm.markers[i].opts.Icon)
		assert.True(t, fm.markers[i].visible)
		assert.Equal(t, surface.AnimationDrop, fm.markers[i].opts.Animation)
	}
	assert.Equal(t, list, m.Entries())
}

func TestRebuild_RespectsCurrentVisibility(t *testing.T) {
	m, fm := newTestManager()
	list := entries("a", "b")
	list[1].Visible.Set(false)

	m.Rebuild(list)

	assert.True(t, fm.markers[0].opts.Visible)
	assert.False(t, fm.markers[1].opts.Visible)
}

func TestRebuild_ReplacesPreviousMarkers(t *testing.T) {
	m, fm := newTestManager()
	first := entries("a", "b")
	m.Rebuild(first)

	m.Rebuild(entries("c", "d", "e"))

	require.Len(t, fm.markers, 5)
	assert.True(t, fm.markers[0].released)
	assert.True(t, fm.markers[1].released)
	for _, mk := range fm.markers[2:] {
		assert.False(t, mk.released)
	}
	assert.Equal(t, 3, m.Placed())
	assert.Equal(t, 0, first[0].Visible.Subscribers(), "removed markers stop watching visibility")
}

func TestRebuild_EmptyLeavesOverlay(t *testing.T) {
	m, fm := newTestManager()
	m.Rebuild(entries("a", "b"))

	m.Rebuild(nil)
	m.Rebuild([]*model.ImageEntry{})

	assert.Len(t, fm.markers, 2)
	assert.Equal(t, 2, m.Placed())
	assert.False(t, fm.markers[0].released)
}

func TestVisibilityToggle_DetachesWithoutDestroying(t *testing.T) {
	m, fm := newTestManager()
	list := entries("a")
	m.Rebuild(list)

	list[0].Visible.Set(false)
	assert.False(t, fm.markers[0].visible)
	assert.False(t, fm.markers[0].released)
	assert.Equal(t, 1, m.Placed())

	list[0].Visible.Set(true)
	assert.True(t, fm.markers[0].visible)
}

func TestSelect_EmphasisAndInfoWindow(t *testing.T) {
	m, fm := newTestManager()
	m.Rebuild(entries("Fort", "Pettah"))

	fm.markers[0].onClick()
	assert.Equal(t, surface.AnimationBounce, fm.markers[0].animation)

	fm.markers[1].onClick()

	assert.Equal(t, surface.AnimationNone, fm.markers[0].animation)
	assert.Equal(t, surface.AnimationBounce, fm.markers[1].animation)
	assert.Equal(t, InfoContent("Pettah", "full/Pettah"), fm.info.content)
	assert.Same(t, fm.markers[1], fm.info.anchor)
	assert.Equal(t, 2, fm.info.opened)
}

func TestSelect_RemovedMarkerIgnored(t *testing.T) {
	m, fm := newTestManager()
	m.Rebuild(entries("a"))
	stale := fm.markers[0]
	m.ClearAll()

	stale.onClick()

	assert.Equal(t, 0, fm.info.opened)
}

func TestCloseClick_ClearsEmphasisOnly(t *testing.T) {
	m, fm := newTestManager()
	m.Rebuild(entries("a", "b"))
	fm.markers[1].onClick()

	fm.info.closeClick()

	for _, mk := range fm.markers {
		assert.Equal(t, surface.AnimationNone, mk.animation)
		assert.True(t, mk.visible)
		assert.False(t, mk.released)
	}
	assert.Equal(t, 2, m.Placed())
}

func TestClearAll(t *testing.T) {
	m, fm := newTestManager()
	list := entries("a", "b")
	m.Rebuild(list)

	m.ClearAll()
	m.ClearAll()

	assert.Equal(t, 0, m.Placed())
	for _, mk := range fm.markers {
		assert.True(t, mk.released)
	}

	list[0].Visible.Set(true)
	assert.False(t, fm.markers[0].visible, "released marker must not be reattached")
}

func TestCloseInfo(t *testing.T) {
	m, fm := newTestManager()
	m.CloseInfo()
	assert.Equal(t, 1, fm.info.closed)
}

func TestWithIconSize(t *testing.T) {
	m, fm := newTestManager(WithIconSize(40))
	m.Rebuild(entries("a"))
	assert.Equal(t, 40, fm.markers[0].opts.Icon.Size)
}

func TestBounds(t *testing.T) {
	m, _ := newTestManager()
	env, err := m.Bounds()
	require.NoError(t, err)
	assert.True(t, env.IsEmpty())

	m.Rebuild(entries("a", "b", "c"))

	env, err = m.Bounds()
	require.NoError(t, err)
	min, max, ok := env.MinMaxXYs()
	require.True(t, ok)
	assert.InDelta(t, 79.0, min.X, 1e-9)
	assert.InDelta(t, 6.0, min.Y, 1e-9)
	assert.InDelta(t, 79.2, max.X, 1e-9)
	assert.InDelta(t, 6.2, max.Y, 1e-9)
}

func TestInfoContent_Escapes(t *testing.T) {
	got := InfoContent(`<b>"x"</b>`, "http://a/b?c=1&d=2")
	assert.Equal(t,
		`<p><span class="info-title">&lt;b&gt;&#34;x&#34;&lt;/b&gt;</span></p><p><img class="info-image" alt="Marker image" src="http://a/b?c=1&amp;d=2"></p>`,
		got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unplaced", Unplaced.String())
	assert.Equal(t, "placed", Placed.String())
	assert.Equal(t, "removed", Removed.String())
}
