// Package chart is an in-memory chart model that scripts drive through the
// native binding bridge. It stores what scripts build; it does not render or
// schedule anything.
package chart

import (
	"fmt"
	"sort"
)

// DefaultBPM applies before the first tempo change.
const DefaultBPM float32 = 120

// Note is a single hit object on a judge line.
type Note struct {
	Time  float32
	Kind  string
	Speed float32
}

// Event animates one property of a judge line, starting at Time.
type Event struct {
	Time     float32
	Property string
	Value    float32
}

// JudgeLine is a line notes fall towards.
type JudgeLine struct {
	Name     string
	X, Y     float32
	Rotation float32
	Alpha    float32
	Notes    []*Note
	Events   []*Event
}

// AddNote appends a note and keeps Notes ordered by time.
func (l *JudgeLine) AddNote(time float32, kind string) *Note {
	n := &Note{Time: time, Kind: kind, Speed: 1}
	idx := sort.Search(len(l.Notes), func(i int) bool { return l.Notes[i].Time > time })
	l.Notes = append(l.Notes, nil)
	copy(l.Notes[idx+1:], l.Notes[idx:])
	l.Notes[idx] = n
	return n
}

// Animate records an event for one of the animatable properties.
func (l *JudgeLine) Animate(time float32, property string, value float32) (*Event, error) {
	if _, ok := l.property(property); !ok {
		return nil, fmt.Errorf("chart: line %s has no animatable property %q", l.Name, property)
	}
	e := &Event{Time: time, Property: property, Value: value}
	l.Events = append(l.Events, e)
	sort.SliceStable(l.Events, func(i, j int) bool { return l.Events[i].Time < l.Events[j].Time })
	return e, nil
}

func (l *JudgeLine) property(name string) (*float32, bool) {
	switch name {
	case "x":
		return &l.X, true
	case "y":
		return &l.Y, true
	case "rotation":
		return &l.Rotation, true
	case "alpha":
		return &l.Alpha, true
	}
	return nil, false
}

// Apply sets every animated property to the value of its last event at or
// before time.
func (l *JudgeLine) Apply(time float32) {
	for _, e := range l.Events {
		if e.Time > time {
			break
		}
		if p, ok := l.property(e.Property); ok {
			*p = e.Value
		}
	}
}

// Timeline is a named group of judge lines.
type Timeline struct {
	Name  string
	Lines []*JudgeLine
}

// Line returns the line called name, creating it when missing.
func (t *Timeline) Line(name string) *JudgeLine {
	for _, l := range t.Lines {
		if l.Name == name {
			return l
		}
	}
	l := &JudgeLine{Name: name, Alpha: 1}
	t.Lines = append(t.Lines, l)
	return l
}

// BPMChange switches the tempo at Beat.
type BPMChange struct {
	Beat float32
	BPM  float32
}

// Chart is the root of the model.
type Chart struct {
	Version string
	Groups  []*Timeline
	Tempo   []BPMChange
}

func New(version string) *Chart {
	return &Chart{Version: version}
}

// Group returns the timeline called name, creating it when missing.
func (c *Chart) Group(name string) *Timeline {
	for _, g := range c.Groups {
		if g.Name == name {
			return g
		}
	}
	g := &Timeline{Name: name}
	c.Groups = append(c.Groups, g)
	return g
}

// FindLine searches every group for a line.
func (c *Chart) FindLine(name string) (*JudgeLine, bool) {
	for _, g := range c.Groups {
		for _, l := range g.Lines {
			if l.Name == name {
				return l, true
			}
		}
	}
	return nil, false
}

// Lines lists the lines of all groups in group order.
func (c *Chart) Lines() []*JudgeLine {
	var out []*JudgeLine
	for _, g := range c.Groups {
		out = append(out, g.Lines...)
	}
	return out
}

// SetBPM records a tempo change, replacing one at the same beat.
func (c *Chart) SetBPM(beat, bpm float32) error {
	if bpm <= 0 {
		return fmt.Errorf("chart: bpm must be positive, got %g", bpm)
	}
	idx := sort.Search(len(c.Tempo), func(i int) bool { return c.Tempo[i].Beat >= beat })
	if idx < len(c.Tempo) && c.Tempo[idx].Beat == beat {
		c.Tempo[idx].BPM = bpm
		return nil
	}
	c.Tempo = append(c.Tempo, BPMChange{})
	copy(c.Tempo[idx+1:], c.Tempo[idx:])
	c.Tempo[idx] = BPMChange{Beat: beat, BPM: bpm}
	return nil
}

// BPMAt returns the tempo in effect at beat.
func (c *Chart) BPMAt(beat float32) float32 {
	bpm := DefaultBPM
	for _, change := range c.Tempo {
		if change.Beat > beat {
			break
		}
		bpm = change.BPM
	}
	return bpm
}

// NoteCount counts the notes on every line.
func (c *Chart) NoteCount() int {
	n := 0
	for _, l := range c.Lines() {
		n += len(l.Notes)
	}
	return n
}
