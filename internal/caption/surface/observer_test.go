package surface

import (
	"reflect"
	"testing"

	"github.com/captionsync/backend/internal/caption/align"
)

func newObserver(target string) (*Observer, *align.Store) {
	s := align.NewStore()
	s.Initialize(target)
	return NewObserver(s), s
}

func intp(i int) *int { return &i }

func TestLocalizedPass(t *testing.T) {
	o, s := newObserver("A cat. / A dog.")
	rep := o.Observe(Event{
		Kind:  EventInput,
		Focus: intp(1),
		Snapshot: Snapshot{Regions: []Region{
			At(0, "A cat."),
			At(1, "A wolf."),
		}},
	})
	if rep.Mode != ModeLocalized {
		t.Fatalf("mode = %s, want localized", rep.Mode)
	}
	if !reflect.DeepEqual(rep.Updated, []int{1}) {
		t.Errorf("updated = %v", rep.Updated)
	}
	if got := s.DirtyIndices(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("dirty = %v, want [1]", got)
	}
}

func TestLocalizedIgnoresMarkerNodes(t *testing.T) {
	o, s := newObserver("A cat. / A dog.")
	o.Observe(Event{
		Kind:  EventInput,
		Focus: intp(0),
		Snapshot: Snapshot{Regions: []Region{{
			Index: intp(0),
			Nodes: []Node{
				{Text: "1", Marker: true},
				{Text: " A ", Children: []Node{{Text: "cat."}}},
			},
		}}},
	})
	if u, _ := s.Unit(0); u.Dirty() {
		t.Errorf("marker text leaked into content: %q", u.Current)
	}
}

func TestFocusOutOfRangeIsNoop(t *testing.T) {
	o, s := newObserver("A cat.")
	rep := o.Observe(Event{
		Kind:     EventInput,
		Focus:    intp(4),
		Snapshot: Snapshot{Regions: []Region{At(0, "A cat."), At(4, "ghost")}},
	})
	if rep.Mode != ModeLocalized {
		t.Fatalf("mode = %s", rep.Mode)
	}
	if !reflect.DeepEqual(rep.Skipped, []int{4}) {
		t.Errorf("skipped = %v", rep.Skipped)
	}
	if s.Len() != 1 || len(s.DirtyIndices()) != 0 {
		t.Error("store changed on out-of-range index")
	}
}

func TestStructuralStrayText(t *testing.T) {
	o, s := newObserver("A cat. / A dog.")
	rep := o.Observe(Event{
		Kind: EventBlur,
		Snapshot: Snapshot{Regions: []Region{
			At(0, "A cat."),
			At(1, "A dog."),
			Stray(" / extra note. "),
		}},
	})
	if rep.Mode != ModeStructural {
		t.Fatalf("mode = %s", rep.Mode)
	}
	if want := []string{"extra note"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("pending = %q, want %q", o.Pending(), want)
	}
	if len(s.DirtyIndices()) != 0 {
		t.Errorf("dirty = %v", s.DirtyIndices())
	}
}

func TestStructuralMergesAdjacentStrayRegions(t *testing.T) {
	o, _ := newObserver("A cat. / A dog.")
	o.Observe(Event{
		Kind: EventBlur,
		Snapshot: Snapshot{Regions: []Region{
			At(0, "A cat."),
			Stray("extra"),
			Stray(" note"),
			At(1, "A dog."),
			Stray("tail"),
		}},
	})
	if want := []string{"extra note", "tail"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("pending = %q, want %q", o.Pending(), want)
	}

	o.Observe(Event{
		Kind: EventBlur,
		Snapshot: Snapshot{Regions: []Region{
			At(0, "A cat."),
			At(1, "A dog."),
			Stray("extra"),
			Stray(" note"),
		}},
	})
	if want := []string{"extra note"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("trailing strays: pending = %q, want %q", o.Pending(), want)
	}
}

func TestStructuralSplitsStraySentences(t *testing.T) {
	o, _ := newObserver("A cat.")
	o.Observe(Event{
		Kind:     EventBlur,
		Snapshot: Snapshot{Regions: []Region{At(0, "A cat."), Stray("one / two，")}},
	})
	if want := []string{"one", "two"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("pending = %q, want %q", o.Pending(), want)
	}
}

func TestStructuralReplacesPending(t *testing.T) {
	o, _ := newObserver("A cat.")
	o.Observe(Event{Kind: EventBlur, Snapshot: Snapshot{Regions: []Region{At(0, "A cat."), Stray("first")}}})
	o.Observe(Event{Kind: EventBlur, Snapshot: Snapshot{Regions: []Region{At(0, "A cat.")}}})
	if len(o.Pending()) != 0 {
		t.Errorf("pending not replaced: %q", o.Pending())
	}
}

func TestStructuralTombstonesVanished(t *testing.T) {
	o, s := newObserver("A. / B. / C.")
	rep := o.Observe(Event{
		Kind:     EventBlur,
		Snapshot: Snapshot{Regions: []Region{At(0, "A."), At(2, "C.")}},
	})
	if !reflect.DeepEqual(rep.Vanished, []int{1}) {
		t.Errorf("vanished = %v", rep.Vanished)
	}
	u, _ := s.Unit(1)
	if !u.Dirty() || !u.Emptied() {
		t.Errorf("unit 1 = %+v, want emptied and dirty", u)
	}
	if s.Len() != 3 {
		t.Error("structural pass must not remove units itself")
	}
}

func TestDuplicateIndexBecomesStray(t *testing.T) {
	o, s := newObserver("A. / B.")
	o.Observe(Event{
		Kind: EventBlur,
		Snapshot: Snapshot{Regions: []Region{
			At(0, "A."),
			At(0, "copy"),
			At(1, "B."),
		}},
	})
	if u, _ := s.Unit(0); u.Current != "A." {
		t.Errorf("first region must win, got %q", u.Current)
	}
	if want := []string{"copy"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("pending = %q", o.Pending())
	}
}

func TestCompositionGate(t *testing.T) {
	o, s := newObserver("A. / B.")
	o.BeginComposition()
	if o.GateState() != Composing {
		t.Fatal("gate not composing")
	}
	ev := Event{Kind: EventInput, Focus: intp(1), Snapshot: Snapshot{Regions: []Region{At(0, "A."), At(1, "Bx")}}}
	if rep := o.Observe(ev); rep.Mode != ModeSuppressed {
		t.Fatalf("mode = %s, want suppressed", rep.Mode)
	}
	if len(s.DirtyIndices()) != 0 {
		t.Fatal("pass ran while composing")
	}
	ev.Snapshot.Regions[1] = At(1, "B2.")
	rep := o.EndComposition(ev)
	if rep.Mode != ModeLocalized || o.GateState() != Idle {
		t.Fatalf("mode = %s gate = %s", rep.Mode, o.GateState())
	}
	if u, _ := s.Unit(1); u.Current != "B2." {
		t.Errorf("unit 1 = %q", u.Current)
	}
}

func TestObserveText(t *testing.T) {
	o, s := newObserver("A. / B. / C.")
	rep := o.ObserveText("A. / B2. / C. / D.")
	if rep.Mode != ModeStructural {
		t.Fatalf("mode = %s", rep.Mode)
	}
	if got := s.DirtyIndices(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("dirty = %v, want [1]", got)
	}
	if u, _ := s.Unit(1); u.Current != "B2." {
		t.Errorf("unit 1 = %q", u.Current)
	}
	if want := []string{"D"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("pending = %q", o.Pending())
	}
}

func TestObserveTextKeepsAppendedSentencesApart(t *testing.T) {
	o, _ := newObserver("A. / B.")
	o.ObserveText("A. / B. / X. / Y.")
	if want := []string{"X", "Y"}; !reflect.DeepEqual(o.Pending(), want) {
		t.Errorf("pending = %q, want %q", o.Pending(), want)
	}
}

func TestObserveTextDeletion(t *testing.T) {
	o, s := newObserver("A. / B. / C.")
	rep := o.ObserveText("A. / C.")
	if !reflect.DeepEqual(rep.Vanished, []int{1}) {
		t.Errorf("vanished = %v", rep.Vanished)
	}
	if u, _ := s.Unit(2); u.Dirty() {
		t.Errorf("unit 2 should be untouched: %+v", u)
	}
}
