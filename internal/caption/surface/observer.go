package surface

import (
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/captionsync/backend/internal/caption/align"
	"github.com/captionsync/backend/internal/caption/segment"
)

// Mode is the kind of pass the observer ran.
type Mode string

const (
	ModeLocalized  Mode = "localized"
	ModeStructural Mode = "structural"
	ModeSuppressed Mode = "suppressed"
)

// Report describes the effect of one observer pass.
type Report struct {
	Mode       Mode     `json:"mode"`
	Updated    []int    `json:"updated,omitempty"`    // indices whose content was read from the surface
	Vanished   []int    `json:"vanished,omitempty"`   // indices no longer present, tombstoned for removal
	Insertions []string `json:"insertions,omitempty"` // stray text collected by a structural pass
	Skipped    []int    `json:"skipped,omitempty"`    // indices the store no longer has
}

// strayTrimRe strips whitespace and separator punctuation around stray text.
var strayTrimRe = regexp.MustCompile(`^[\s/,.。，]+|[\s/,.。，]+$`)

// Observer turns surface events into alignment store mutations and keeps
// the list of pending insertions.
type Observer struct {
	store   *align.Store
	gate    Gate
	pending []string
}

// NewObserver creates an observer bound to store.
func NewObserver(store *align.Store) *Observer {
	return &Observer{store: store}
}

// Observe runs a localized or structural pass for ev. While an input method
// is composing the event is ignored.
func (o *Observer) Observe(ev Event) Report {
	if !o.gate.Open() {
		return Report{Mode: ModeSuppressed}
	}
	return o.pass(ev)
}

// BeginComposition suspends passes until EndComposition.
func (o *Observer) BeginComposition() {
	o.gate.Begin()
}

// EndComposition reopens the gate and runs exactly one pass for the final
// state of the surface.
func (o *Observer) EndComposition(ev Event) Report {
	o.gate.End()
	return o.pass(ev)
}

// GateState returns the composition state.
func (o *Observer) GateState() GateState {
	return o.gate.State()
}

// ObserveText applies a fully edited target caption, as typed into a plain
// text field, by diffing its sentences against the current units.
func (o *Observer) ObserveText(target string) Report {
	if !o.gate.Open() {
		return Report{Mode: ModeSuppressed}
	}
	snap := DiffSnapshot(o.store.Currents(), segment.Split(target, segment.Target))
	return o.structural(snap)
}

// Pending returns a copy of the pending insertions.
func (o *Observer) Pending() []string {
	return append([]string(nil), o.pending...)
}

// SetPending replaces the pending insertions; used after a reconcile pass
// consumed some of them.
func (o *Observer) SetPending(pending []string) {
	o.pending = append([]string(nil), pending...)
}

// ClearPending drops all pending insertions.
func (o *Observer) ClearPending() {
	o.pending = nil
}

func (o *Observer) pass(ev Event) Report {
	if ev.Kind != EventBlur && ev.Focus != nil {
		if r, ok := findRegion(ev.Snapshot, *ev.Focus); ok {
			return o.localized(*ev.Focus, r)
		}
	}
	return o.structural(ev.Snapshot)
}

func (o *Observer) localized(index int, r Region) Report {
	rep := Report{Mode: ModeLocalized}
	if err := o.store.SetCurrent(index, r.Content()); err != nil {
		o.logSkip(index, err)
		rep.Skipped = []int{index}
		return rep
	}
	rep.Updated = []int{index}
	return rep
}

func (o *Observer) structural(snap Snapshot) Report {
	rep := Report{Mode: ModeStructural}
	seen := make(map[int]bool)
	var insertions []string

	// contiguous unaddressed regions form one stray fragment
	var stray strings.Builder
	flush := func() {
		insertions = append(insertions, strayFragments(stray.String())...)
		stray.Reset()
	}

	for _, r := range snap.Regions {
		if r.Addressable() && !seen[*r.Index] {
			flush()
			idx := *r.Index
			if err := o.store.SetCurrent(idx, r.Content()); err != nil {
				o.logSkip(idx, err)
				rep.Skipped = append(rep.Skipped, idx)
				continue
			}
			seen[idx] = true
			rep.Updated = append(rep.Updated, idx)
			continue
		}
		// unaddressed text, or a copy of a region that was already seen
		stray.WriteString(r.rawContent())
	}
	flush()

	for i := 0; i < o.store.Len(); i++ {
		if seen[i] {
			continue
		}
		o.store.SetCurrent(i, "")
		rep.Vanished = append(rep.Vanished, i)
	}

	o.pending = insertions
	rep.Insertions = o.Pending()
	return rep
}

func (o *Observer) logSkip(index int, err error) {
	if errors.Is(err, align.ErrIndexOutOfRange) {
		log.Printf("[surface] index %d out of range (units=%d), ignored", index, o.store.Len())
		return
	}
	log.Printf("[surface] index %d: %v", index, err)
}

func findRegion(snap Snapshot, index int) (Region, bool) {
	for _, r := range snap.Regions {
		if r.Addressable() && *r.Index == index {
			return r, true
		}
	}
	return Region{}, false
}

// strayFragments cleans a stray text run and splits it on the target
// separator so each typed sentence becomes its own insertion.
func strayFragments(text string) []string {
	var out []string
	for _, part := range segment.Split(text, segment.Target) {
		if clean := strings.TrimSpace(strayTrimRe.ReplaceAllString(part, "")); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
