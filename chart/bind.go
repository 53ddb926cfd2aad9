package chart

import (
	"sort"

	"github.com/google/uuid"

	"github.com/chartbuild/cbscript/cbs"
)

// Binding exposes a Chart to scripts as the global `chart`. Host objects
// are wrapped once so scripts can compare them with ==.
type Binding struct {
	chart     *Chart
	callbacks *cbs.CallbackRegistry

	groups map[*Timeline]*cbs.NativeObject
	lines  map[*JudgeLine]*cbs.NativeObject
	notes  map[*Note]*cbs.NativeObject
}

// Bind registers c with engine under the name `chart`.
func Bind(engine *cbs.Engine, c *Chart) *Binding {
	b := &Binding{
		chart:     c,
		callbacks: cbs.NewCallbackRegistry(),
		groups:    make(map[*Timeline]*cbs.NativeObject),
		lines:     make(map[*JudgeLine]*cbs.NativeObject),
		notes:     make(map[*Note]*cbs.NativeObject),
	}
	engine.RegisterObject("chart", b.chartObject())
	return b
}

func (b *Binding) Chart() *Chart { return b.chart }

// Pending reports the number of callbacks that have not fired yet.
func (b *Binding) Pending() int { return b.callbacks.Len() }

// Fire advances the chart to time: line events up to time are applied, then
// every callback registered for a time at or before it runs once, earliest
// time first. Callbacks due at the same time run in registration order. It
// returns the number of callbacks that ran.
func (b *Binding) Fire(inv cbs.Invoker, time float32) (int, error) {
	for _, l := range b.chart.Lines() {
		l.Apply(time)
	}
	due := b.callbacks.Select(func(key cbs.Value) bool {
		at, ok := key.Number()
		return ok && float32(at) <= time
	})
	sort.SliceStable(due, func(i, j int) bool {
		ti, _ := due[i].Key.Number()
		tj, _ := due[j].Key.Number()
		return ti < tj
	})
	for i, cb := range due {
		_, err := b.callbacks.Invoke(inv, cb.ID, cbs.NewF32(time))
		b.callbacks.Remove(cb.ID)
		if err != nil {
			return i, err
		}
	}
	return len(due), nil
}

func (b *Binding) chartObject() *cbs.NativeObject {
	c := b.chart
	return cbs.NewObjectBuilder("chart").
		Constant("version", cbs.NewString(c.Version)).
		Getter("lines", func() (cbs.Value, error) {
			lines := c.Lines()
			items := make([]cbs.Value, len(lines))
			for i, l := range lines {
				items[i] = cbs.NewObject(b.lineObject(l))
			}
			return cbs.NewArrayOf(items), nil
		}).
		Getter("groups", func() (cbs.Value, error) {
			items := make([]cbs.Value, len(c.Groups))
			for i, g := range c.Groups {
				items[i] = cbs.NewObject(b.groupObject(g))
			}
			return cbs.NewArrayOf(items), nil
		}).
		Getter("bpm", func() (cbs.Value, error) {
			return cbs.NewObject(b.tempoObject()), nil
		}).
		Getter("pending", func() (cbs.Value, error) {
			return cbs.NewI32(int32(b.callbacks.Len())), nil
		}).
		Method("group", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			name, err := nameArg("chart.group", args)
			if err != nil {
				return cbs.Value{}, err
			}
			return cbs.NewObject(b.groupObject(c.Group(name))), nil
		}).
		Method("line", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			name, err := nameArg("chart.line", args)
			if err != nil {
				return cbs.Value{}, err
			}
			l, ok := c.FindLine(name)
			if !ok {
				return cbs.Value{}, cbs.Errorf(cbs.MissingMember, "chart has no line %q", name)
			}
			return cbs.NewObject(b.lineObject(l)), nil
		}).
		Method("on", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			if err := cbs.ExpectArgs("chart.on", args, 2); err != nil {
				return cbs.Value{}, err
			}
			if _, err := cbs.NumberArg("chart.on", args[0]); err != nil {
				return cbs.Value{}, err
			}
			id, err := b.callbacks.Register(args[0], args[1])
			if err != nil {
				return cbs.Value{}, err
			}
			return cbs.NewString(id.String()), nil
		}).
		Method("cancel", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			handle, err := nameArg("chart.cancel", args)
			if err != nil {
				return cbs.Value{}, err
			}
			id, err := uuid.Parse(handle)
			if err != nil {
				return cbs.Value{}, cbs.Errorf(cbs.InvalidArgument, "chart.cancel: %v", err)
			}
			return cbs.NewBool(b.callbacks.Remove(id)), nil
		}).
		Method("fire", func(call *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			if err := cbs.ExpectArgs("chart.fire", args, 1); err != nil {
				return cbs.Value{}, err
			}
			time, err := cbs.NumberArg("chart.fire", args[0])
			if err != nil {
				return cbs.Value{}, err
			}
			n, err := b.Fire(call, float32(time))
			if err != nil {
				return cbs.Value{}, err
			}
			return cbs.NewI32(int32(n)), nil
		}).
		Build(c)
}

// tempoObject resolves chart.bpm[beat] through the fallback resolver.
func (b *Binding) tempoObject() *cbs.NativeObject {
	c := b.chart
	return cbs.NewObjectBuilder("tempo").
		Getter("changes", func() (cbs.Value, error) {
			return cbs.NewI32(int32(len(c.Tempo))), nil
		}).
		Method("set", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			if err := cbs.ExpectArgs("bpm.set", args, 2); err != nil {
				return cbs.Value{}, err
			}
			beat, err := cbs.NumberArg("bpm.set", args[0])
			if err != nil {
				return cbs.Value{}, err
			}
			bpm, err := cbs.NumberArg("bpm.set", args[1])
			if err != nil {
				return cbs.Value{}, err
			}
			if err := c.SetBPM(float32(beat), float32(bpm)); err != nil {
				return cbs.Value{}, cbs.Errorf(cbs.InvalidArgument, "%v", err)
			}
			return cbs.NewNull(), nil
		}).
		Fallback(func(key cbs.Value) (cbs.Value, error) {
			beat, ok := key.Number()
			if !ok {
				return cbs.Value{}, cbs.Errorf(cbs.MissingMember, "bpm has no member %s", key)
			}
			return cbs.NewF32(c.BPMAt(float32(beat))), nil
		}).
		Build(c)
}

func (b *Binding) groupObject(g *Timeline) *cbs.NativeObject {
	if obj, ok := b.groups[g]; ok {
		return obj
	}
	obj := cbs.NewObjectBuilder("group").
		Constant("name", cbs.NewString(g.Name)).
		Getter("lines", func() (cbs.Value, error) {
			items := make([]cbs.Value, len(g.Lines))
			for i, l := range g.Lines {
				items[i] = cbs.NewObject(b.lineObject(l))
			}
			return cbs.NewArrayOf(items), nil
		}).
		Method("line", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			name, err := nameArg("group.line", args)
			if err != nil {
				return cbs.Value{}, err
			}
			return cbs.NewObject(b.lineObject(g.Line(name))), nil
		}).
		Build(g)
	b.groups[g] = obj
	return obj
}

func (b *Binding) lineObject(l *JudgeLine) *cbs.NativeObject {
	if obj, ok := b.lines[l]; ok {
		return obj
	}
	builder := cbs.NewObjectBuilder("line").
		Constant("name", cbs.NewString(l.Name)).
		Getter("notes", func() (cbs.Value, error) {
			items := make([]cbs.Value, len(l.Notes))
			for i, n := range l.Notes {
				items[i] = cbs.NewObject(b.noteObject(n))
			}
			return cbs.NewArrayOf(items), nil
		}).
		Method("note", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			if err := cbs.ExpectArgs("line.note", args, 2); err != nil {
				return cbs.Value{}, err
			}
			time, err := cbs.NumberArg("line.note", args[0])
			if err != nil {
				return cbs.Value{}, err
			}
			kind, err := stringArg("line.note", args[1])
			if err != nil {
				return cbs.Value{}, err
			}
			return cbs.NewObject(b.noteObject(l.AddNote(float32(time), kind))), nil
		}).
		Method("animate", func(_ *cbs.CallContext, args []cbs.Value) (cbs.Value, error) {
			if err := cbs.ExpectArgs("line.animate", args, 3); err != nil {
				return cbs.Value{}, err
			}
			time, err := cbs.NumberArg("line.animate", args[0])
			if err != nil {
				return cbs.Value{}, err
			}
			property, err := stringArg("line.animate", args[1])
			if err != nil {
				return cbs.Value{}, err
			}
			value, err := cbs.NumberArg("line.animate", args[2])
			if err != nil {
				return cbs.Value{}, err
			}
			if _, err := l.Animate(float32(time), property, float32(value)); err != nil {
				return cbs.Value{}, cbs.Errorf(cbs.InvalidArgument, "%v", err)
			}
			return cbs.NewI32(int32(len(l.Events))), nil
		})
	for _, name := range []string{"x", "y", "rotation", "alpha"} {
		field, _ := l.property(name)
		builder.Property(name, f32Getter(field), f32Setter(field))
	}
	obj := builder.Build(l)
	b.lines[l] = obj
	return obj
}

func (b *Binding) noteObject(n *Note) *cbs.NativeObject {
	if obj, ok := b.notes[n]; ok {
		return obj
	}
	obj := cbs.NewObjectBuilder("note").
		Getter("time", f32Getter(&n.Time)).
		Getter("kind", func() (cbs.Value, error) { return cbs.NewString(n.Kind), nil }).
		Property("speed", f32Getter(&n.Speed), f32Setter(&n.Speed)).
		Build(n)
	b.notes[n] = obj
	return obj
}

func f32Getter(field *float32) func() (cbs.Value, error) {
	return func() (cbs.Value, error) { return cbs.NewF32(*field), nil }
}

func f32Setter(field *float32) func(cbs.Value) error {
	return func(v cbs.Value) error {
		f, err := cbs.Convert(v, cbs.TypeF32)
		if err != nil {
			return err
		}
		*field = f.F32()
		return nil
	}
}

func stringArg(name string, v cbs.Value) (string, error) {
	if v.Kind() != cbs.KindString {
		return "", cbs.Errorf(cbs.InvalidType, "%s expects a string, got %s", name, v.Type().Name())
	}
	return v.Str(), nil
}

func nameArg(name string, args []cbs.Value) (string, error) {
	if err := cbs.ExpectArgs(name, args, 1); err != nil {
		return "", err
	}
	return stringArg(name, args[0])
}
