package board

import (
	"fmt"
	"sort"
	"strconv"
)

// NoSelection is the selected index of a board without entries.
const NoSelection = -1

// State is the interaction state of a rendered board: the selected entry and
// the set of expanded months. Absent months are collapsed. State is a value;
// Select and Toggle return a new State and never modify their input.
type State struct {
	Selected int
	Expanded map[MonthKey]bool
}

// IsExpanded reports whether month k is expanded.
func (s State) IsExpanded(k MonthKey) bool {
	return s.Expanded[k]
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Selected: s.Selected, Expanded: make(map[MonthKey]bool, len(s.Expanded))}
	for k, v := range s.Expanded {
		out.Expanded[k] = v
	}
	return out
}

// ExpandedKeys returns the expanded months, newest first.
func (s State) ExpandedKeys() []MonthKey {
	keys := make([]MonthKey, 0, len(s.Expanded))
	for k, v := range s.Expanded {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].After(keys[j]) })
	return keys
}

// InitialState selects the first entry in original order with every month collapsed.
func (b *Board) InitialState() State {
	sel := 0
	if len(b.entries) == 0 {
		sel = NoSelection
	}
	return State{Selected: sel, Expanded: map[MonthKey]bool{}}
}

// ScrollCommand asks the view to bring an entry card into the viewport.
// It is fire-and-forget; nothing waits for the animation.
type ScrollCommand struct {
	Index    int    `json:"index"`
	Anchor   string `json:"anchor"`
	Block    string `json:"block"`
	Behavior string `json:"behavior"`
}

// AnchorID is the DOM id of the card for entry i.
func AnchorID(i int) string {
	return "entry-" + strconv.Itoa(i)
}

// Select makes entry i the selection and returns the scroll command for its card.
// An out-of-range index is a caller bug and panics; check Has for external input.
func (b *Board) Select(s State, i int) (State, ScrollCommand) {
	if !b.Has(i) {
		panic(fmt.Sprintf("board: select index %d out of range [0,%d)", i, len(b.entries)))
	}
	next := s.Clone()
	next.Selected = i
	return next, ScrollCommand{
		Index:    i,
		Anchor:   AnchorID(i),
		Block:    "center",
		Behavior: "smooth",
	}
}

// Toggle flips the expansion of month k and leaves every other month alone.
func Toggle(s State, k MonthKey) State {
	next := s.Clone()
	next.Expanded[k] = !s.Expanded[k]
	return next
}
