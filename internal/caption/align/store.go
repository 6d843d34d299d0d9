// Package align holds the index-addressed sentence units of a translated
// caption and tracks which of them were edited since the last commit.
package align

import (
	"errors"
	"strings"

	"github.com/captionsync/backend/internal/caption/segment"
)

// ErrIndexOutOfRange is returned when an index no longer exists in the store.
var ErrIndexOutOfRange = errors.New("sentence index out of range")

// Unit is one aligned sentence of the translated caption.
type Unit struct {
	Index    int    `json:"index"`
	Original string `json:"original"` // content at last commit
	Current  string `json:"current"`  // latest content from the edit surface
}

// Dirty reports whether the unit changed since its last commit.
func (u Unit) Dirty() bool {
	return strings.TrimSpace(u.Current) != strings.TrimSpace(u.Original)
}

// Emptied reports whether the unit's content was removed entirely.
func (u Unit) Emptied() bool {
	return strings.TrimSpace(u.Current) == ""
}

// UnitView is the JSON projection of a unit with its derived dirty flag.
type UnitView struct {
	Unit
	Dirty bool `json:"dirty"`
}

// Store owns the ordered unit sequence of one caption. Indices always form
// the contiguous range 0..n-1. It is not safe for concurrent use; the owning
// session serializes access.
type Store struct {
	units []Unit
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Initialize wipes the store and rebuilds it from a translated caption.
func (s *Store) Initialize(targetText string) []Unit {
	sentences := segment.Split(targetText, segment.Target)
	s.units = make([]Unit, len(sentences))
	for i, sentence := range sentences {
		s.units[i] = Unit{Index: i, Original: sentence, Current: sentence}
	}
	return s.Units()
}

// SetCurrent records new content for the unit at index.
func (s *Store) SetCurrent(index int, content string) error {
	if index < 0 || index >= len(s.units) {
		return ErrIndexOutOfRange
	}
	s.units[index].Current = content
	return nil
}

// Commit advances every unit's baseline to its current content.
func (s *Store) Commit() {
	for i := range s.units {
		s.units[i].Original = s.units[i].Current
	}
}

// CommitAt advances the baseline of a single unit.
func (s *Store) CommitAt(index int) error {
	if index < 0 || index >= len(s.units) {
		return ErrIndexOutOfRange
	}
	s.units[index].Original = s.units[index].Current
	return nil
}

// Reset discards unsynced edits.
func (s *Store) Reset() {
	for i := range s.units {
		s.units[i].Current = s.units[i].Original
	}
}

// Remove deletes the unit at index and renumbers the ones after it.
func (s *Store) Remove(index int) error {
	if index < 0 || index >= len(s.units) {
		return ErrIndexOutOfRange
	}
	s.units = append(s.units[:index], s.units[index+1:]...)
	for i := index; i < len(s.units); i++ {
		s.units[i].Index = i
	}
	return nil
}

// Append adds a committed unit at the end.
func (s *Store) Append(content string) Unit {
	u := Unit{Index: len(s.units), Original: content, Current: content}
	s.units = append(s.units, u)
	return u
}

// Flatten joins the current content of all units with the target joiner.
func (s *Store) Flatten() string {
	return segment.Join(s.Currents(), segment.Target)
}

// Len returns the number of units.
func (s *Store) Len() int {
	return len(s.units)
}

// Unit returns a copy of the unit at index.
func (s *Store) Unit(index int) (Unit, bool) {
	if index < 0 || index >= len(s.units) {
		return Unit{}, false
	}
	return s.units[index], true
}

// Units returns a copy of the unit sequence.
func (s *Store) Units() []Unit {
	out := make([]Unit, len(s.units))
	copy(out, s.units)
	return out
}

// Views returns the units with their derived dirty flags.
func (s *Store) Views() []UnitView {
	out := make([]UnitView, len(s.units))
	for i, u := range s.units {
		out[i] = UnitView{Unit: u, Dirty: u.Dirty()}
	}
	return out
}

// Currents returns the current content of every unit in index order.
func (s *Store) Currents() []string {
	out := make([]string, len(s.units))
	for i, u := range s.units {
		out[i] = u.Current
	}
	return out
}

// DirtyIndices returns the indices of all dirty units in ascending order.
func (s *Store) DirtyIndices() []int {
	var out []int
	for _, u := range s.units {
		if u.Dirty() {
			out = append(out, u.Index)
		}
	}
	return out
}
