package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func strPtr(s string) *string { return &s }

func validTab(url string) Tab {
	return Tab{
		Active:     true,
		URL:        strPtr(url),
		Title:      strPtr("Title of " + url),
		FavIconURL: strPtr(url + "/favicon.ico"),
	}
}

func vtab(url string) ValidatedTab {
	vt, ok := ValidateTab(validTab(url))
	if !ok {
		panic("validTab produced an invalid tab")
	}
	return vt
}

// --- ValidateTab ---

func TestValidateTab_Valid(t *testing.T) {
	vt, ok := ValidateTab(validTab("https://example.com"))
	require.True(t, ok)
	assert.Equal(t, "https://example.com", vt.URL)
	assert.Equal(t, "Title of https://example.com", vt.Title)
	assert.Equal(t, "https://example.com/favicon.ico", vt.FaviconURL)
}

func TestValidateTab_Rejects(t *testing.T) {
	inactive := validTab("https://example.com")
	inactive.Active = false

	noFavicon := validTab("https://example.com")
	noFavicon.FavIconURL = nil

	noTitle := validTab("https://example.com")
	noTitle.Title = nil

	noURL := validTab("https://example.com")
	noURL.URL = nil

	emptyURL := validTab("")

	cases := map[string]Tab{
		"inactive":   inactive,
		"no favicon": noFavicon,
		"no title":   noTitle,
		"no url":     noURL,
		"empty url":  emptyURL,
	}
	for name, tab := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := ValidateTab(tab)
			assert.False(t, ok)
		})
	}
}

func TestValidateTab_EmptyTitleAndFaviconAreDefined(t *testing.T) {
	tab := Tab{Active: true, URL: strPtr("https://a.com"), Title: strPtr(""), FavIconURL: strPtr("")}
	_, ok := ValidateTab(tab)
	assert.True(t, ok)
}

// --- Transition ---

func TestTransition_SwitchFromIdleOpensSegment(t *testing.T) {
	state, done := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	assert.Nil(t, done)

	open, ok := state.(Open)
	require.True(t, ok)
	assert.Equal(t, "https://a.com", open.Segment.URL)
	assert.Equal(t, int64(1001), open.Segment.StartTime)
	assert.Equal(t, int64(0), open.Segment.EndTime)
}

func TestTransition_SwitchClosesPreviousSegment(t *testing.T) {
	state, _ := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	state, done := Transition(state, SwitchTo{Tab: vtab("https://b.com")}, 5000)

	require.NotNil(t, done)
	assert.Equal(t, "https://a.com", done.URL)
	assert.Equal(t, int64(1001), done.StartTime)
	assert.Equal(t, int64(5000), done.EndTime)

	open := state.(Open)
	assert.Equal(t, "https://b.com", open.Segment.URL)
	assert.Equal(t, int64(5001), open.Segment.StartTime)
}

func TestTransition_SwitchToSameURLIsNoop(t *testing.T) {
	state, _ := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	next, done := Transition(state, SwitchTo{Tab: vtab("https://a.com")}, 9000)

	assert.Nil(t, done)
	assert.Equal(t, state, next)
}

func TestTransition_SuspendWhileOpenEmits(t *testing.T) {
	state, _ := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	state, done := Transition(state, Suspend{}, 4000)

	require.NotNil(t, done)
	assert.Equal(t, int64(4000), done.EndTime)
	assert.Equal(t, int64(2999), done.Duration())
	assert.Equal(t, Idle{}, state)
}

func TestTransition_SuspendWhileIdleIsNoop(t *testing.T) {
	state, done := Transition(Idle{}, Suspend{}, 4000)
	assert.Nil(t, done)
	assert.Equal(t, Idle{}, state)
}

func TestTransition_ResumeWhileOpenResetsStart(t *testing.T) {
	state, _ := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	state, done := Transition(state, Resume{}, 7000)

	assert.Nil(t, done)
	open := state.(Open)
	assert.Equal(t, int64(7000), open.Segment.StartTime)
	assert.Equal(t, "https://a.com", open.Segment.URL)
}

// Going idle closes the open segment once; coming back without a tab
// switch does not reopen it or emit again.
func TestTransition_IdleResumeWithoutSwitchDoesNotEmit(t *testing.T) {
	state, done := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	require.Nil(t, done)

	var emitted []Segment
	for i, in := range []Input{Suspend{}, Resume{}, Suspend{}, Resume{}} {
		state, done = Transition(state, in, int64(5000+1000*i))
		if done != nil {
			emitted = append(emitted, *done)
		}
	}

	require.Len(t, emitted, 1)
	assert.Equal(t, Segment{
		URL:        "https://a.com",
		Title:      "Title of https://a.com",
		FaviconURL: "https://a.com/favicon.ico",
		StartTime:  1001,
		EndTime:    5000,
	}, emitted[0])
	assert.Equal(t, Idle{}, state)

	// Only a switch starts tracking again.
	state, done = Transition(state, SwitchTo{Tab: vtab("https://a.com")}, 10_000)
	assert.Nil(t, done)
	assert.Equal(t, int64(10_001), state.(Open).Segment.StartTime)
}

func TestTransition_SameMillisecondSwitchKeepsEndAfterStart(t *testing.T) {
	state, _ := Transition(Idle{}, SwitchTo{Tab: vtab("https://a.com")}, 1000)
	state, done := Transition(state, SwitchTo{Tab: vtab("https://b.com")}, 1000)

	require.NotNil(t, done)
	assert.True(t, done.Valid())
	assert.Equal(t, int64(1001), done.EndTime)
	assert.Equal(t, int64(1002), state.(Open).Segment.StartTime)
}

// Emitted segments are sorted by start and never overlap.
func TestTransition_EmittedSegmentsNeverOverlap(t *testing.T) {
	urls := []string{"https://a.com", "https://b.com", "https://c.com"}

	rapid.Check(t, func(rt *rapid.T) {
		var state State = Idle{}
		var emitted []Segment
		now := rapid.Int64Range(0, 1_700_000_000_000).Draw(rt, "start")

		steps := rapid.IntRange(0, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			now += rapid.Int64Range(0, 10_000).Draw(rt, "gap")

			var in Input
			switch rapid.IntRange(0, 2).Draw(rt, "kind") {
			case 0:
				url := rapid.SampledFrom(urls).Draw(rt, "url")
				in = SwitchTo{Tab: vtab(url)}
			case 1:
				in = Suspend{}
			default:
				in = Resume{}
			}

			var done *Segment
			state, done = Transition(state, in, now)
			if done != nil {
				emitted = append(emitted, *done)
			}
		}

		for i, seg := range emitted {
			if !seg.Valid() {
				rt.Fatalf("segment %d is malformed: %+v", i, seg)
			}
			if i > 0 && !(emitted[i-1].EndTime < seg.StartTime) {
				rt.Fatalf("segments %d and %d overlap: %+v %+v", i-1, i, emitted[i-1], seg)
			}
		}
	})
}
