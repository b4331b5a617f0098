package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/enginekit/internal/core/access"
	"github.com/zeusync/enginekit/internal/core/document"
)

func parse(t *testing.T, text string) *document.Node {
	t.Helper()
	n, err := document.ParseJSON([]byte(text))
	require.NoError(t, err)
	return n
}

func dump(t *testing.T, s Serializable) string {
	t.Helper()
	n := document.NewObject()
	require.NoError(t, s.Dump(n))
	data, err := document.DumpJSON(n)
	require.NoError(t, err)
	return string(data)
}

type testObject struct {
	Properties

	boolValue  bool
	floatValue float32
	name       string
	setCalls   int
}

func newTestObject() *testObject {
	o := &testObject{}
	Bind(&o.Properties, "boolValue", &o.boolValue)
	Bind(&o.Properties, "floatValue", &o.floatValue, Optional)
	BindAccessor(&o.Properties, "name",
		func(v string) { o.setCalls++; o.name = v },
		func() string { return o.name },
		Optional)
	return o
}

func TestRead_RequiredMissingKeepsPartialAssignment(t *testing.T) {
	o := newTestObject()

	err := o.Read(parse(t, `{"floatValue":0.0001}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingProperty)
	assert.Contains(t, err.Error(), "boolValue")
	assert.Equal(t, float32(0.0001), o.floatValue)
	assert.Equal(t, 0, o.setCalls, "optional accessor absent: setter not called")
}

func TestRead_AllPresent(t *testing.T) {
	o := newTestObject()
	require.NoError(t, o.Read(parse(t, `{"boolValue":"true","floatValue":2,"name":"hero"}`)))

	assert.True(t, o.boolValue)
	assert.Equal(t, float32(2), o.floatValue)
	assert.Equal(t, "hero", o.name)
	assert.Equal(t, 1, o.setCalls)

	v, ok := o.Snapshot("name")
	require.True(t, ok)
	assert.Equal(t, "hero", v)
}

func TestRead_AggregatesAllErrors(t *testing.T) {
	var p Properties
	var a, b int
	var c string
	Bind(&p, "a", &a)
	Bind(&p, "b", &b)
	Bind(&p, "c", &c)

	err := p.Read(parse(t, `{"b":"abcd","c":"ok"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingProperty)
	assert.ErrorIs(t, err, ErrCast)
	assert.Equal(t, "ok", c, "later bindings still read")
}

func TestDump_WritesEveryBindingInOrder(t *testing.T) {
	o := newTestObject()
	o.boolValue = true
	o.floatValue = 0.5

	assert.Equal(t, `{"boolValue":true,"floatValue":0.5,"name":""}`, dump(t, o))
}

func TestDump_OverwritesOnlyBoundKeys(t *testing.T) {
	o := newTestObject()
	n := parse(t, `{"other":1,"boolValue":"stale"}`)
	require.NoError(t, o.Dump(n))

	data, err := document.DumpJSON(n)
	require.NoError(t, err)
	assert.Equal(t, `{"other":1,"boolValue":false,"floatValue":0.0,"name":""}`, string(data))
}

func TestBind_LastBindWins(t *testing.T) {
	var p Properties
	var first, second int
	Bind(&p, "x", &first)
	Bind(&p, "y", &first, Optional)
	Bind(&p, "x", &second)

	require.NoError(t, p.Read(parse(t, `{"x":5}`)))
	assert.Equal(t, 0, first)
	assert.Equal(t, 5, second)
	assert.Equal(t, []string{"y", "x"}, p.Props())
}

func TestBind_PriorityOrder(t *testing.T) {
	var p Properties
	var a, b, c int
	Bind(&p, "a", &a)
	Bind(&p, "b", &b, Priority(-1))
	Bind(&p, "c", &c, Priority(5))

	assert.Equal(t, []string{"b", "a", "c"}, p.Props())
	assert.Equal(t, `{"b":0,"a":0,"c":0}`, dump(t, &p))
}

func TestFlags(t *testing.T) {
	var p Properties
	var ro, wo int
	Bind(&p, "ro", &ro, Readonly)
	Bind(&p, "wo", &wo, Writeonly)

	require.NoError(t, p.Read(parse(t, `{"ro":1,"wo":2}`)))
	assert.Equal(t, 0, ro, "readonly is never read")
	assert.Equal(t, 2, wo)
	assert.Equal(t, `{"ro":0}`, dump(t, &p), "writeonly is never dumped")
}

func TestSetterGetterOnly(t *testing.T) {
	var p Properties
	var got string
	BindSetter(&p, "in", func(v string) { got = v })
	BindGetter(&p, "out", func() int { return 7 })

	require.NoError(t, p.Read(parse(t, `{"in":"value"}`)))
	assert.Equal(t, "value", got)
	assert.Equal(t, `{"out":7}`, dump(t, &p))
}

type nested struct {
	Properties
	Value int
}

func newNested() *nested {
	n := &nested{}
	Bind(&n.Properties, "value", &n.Value)
	return n
}

func TestNested(t *testing.T) {
	var p Properties
	child := newNested()
	BindNested(&p, "child", child)

	require.NoError(t, p.Read(parse(t, `{"child":{"value":3}}`)))
	assert.Equal(t, 3, child.Value)
	assert.Equal(t, `{"child":{"value":3}}`, dump(t, &p))

	err := p.Read(parse(t, `{"child":{}}`))
	assert.ErrorIs(t, err, ErrMissingProperty)
	assert.Contains(t, err.Error(), "child")

	err = p.Read(parse(t, `{}`))
	assert.ErrorIs(t, err, ErrMissingProperty)
}

func TestDottedNames(t *testing.T) {
	var p Properties
	var hp int
	Bind(&p, "stats.hp", &hp)

	require.NoError(t, p.Read(parse(t, `{"stats":{"hp":12}}`)))
	assert.Equal(t, 12, hp)
	assert.Equal(t, `{"stats":{"hp":12}}`, dump(t, &p))
}

func TestBuiltinCasters(t *testing.T) {
	type look struct {
		color Color
		dir   Vector3
		turn  Degree
		tick  time.Duration
		flags []string
		extra map[string]float64
		raw   *document.Node
	}
	var l look
	var p Properties
	Bind(&p, "color", &l.color)
	Bind(&p, "dir", &l.dir)
	Bind(&p, "turn", &l.turn)
	Bind(&p, "tick", &l.tick)
	Bind(&p, "flags", &l.flags)
	Bind(&p, "extra", &l.extra)
	Bind(&p, "raw", &l.raw)
	require.NoError(t, p.Err())

	require.NoError(t, p.Read(parse(t, `{
		"color":"#ff8000",
		"dir":"1, 2.5, -3",
		"turn":"90deg",
		"tick":"16ms",
		"flags":["a","b"],
		"extra":{"k":1},
		"raw":{"free":[1]}
	}`)))

	assert.Equal(t, Color{R: 0xff, G: 0x80, B: 0, A: 0xff}, l.color)
	assert.Equal(t, Vector3{X: 1, Y: 2.5, Z: -3}, l.dir)
	assert.Equal(t, Degree(90), l.turn)
	assert.InDelta(t, 1.5707963, l.turn.Radians(), 1e-6)
	assert.Equal(t, 16*time.Millisecond, l.tick)
	assert.Equal(t, []string{"a", "b"}, l.flags)
	assert.Equal(t, map[string]float64{"k": 1}, l.extra)

	assert.Equal(t,
		`{"color":"#ff8000ff","dir":"1,2.5,-3","turn":90.0,"tick":"16ms","flags":["a","b"],"extra":{"k":1.0},"raw":{"free":[1]}}`,
		dump(t, &p))

	// array and number sources
	require.NoError(t, p.Read(parse(t, `{"color":"0x80102030","dir":[0,1,0],"turn":45,"tick":"1s","flags":[],"extra":{},"raw":{"x":1}}`)))
	assert.Equal(t, Color{A: 0x80, R: 0x10, G: 0x20, B: 0x30}, l.color)
	assert.Equal(t, Vector3{Y: 1}, l.dir)
	assert.Equal(t, Degree(45), l.turn)
}

func TestCasters_RejectMalformed(t *testing.T) {
	for _, bad := range []string{"", "#12", "#gggggg", "red", "0x123"} {
		_, ok := ParseColor(bad)
		assert.False(t, ok, bad)
	}
	for _, bad := range []string{"", "1,2", "a,b,c", "1,2,3,4"} {
		_, ok := ParseVector3(bad)
		assert.False(t, ok, bad)
	}
	_, ok := ParseDegree("")
	assert.False(t, ok)

	_, ok = Cast[Color](document.NewInt(5))
	assert.False(t, ok, "no int source for Color")

	var p Properties
	var c Color
	Bind(&p, "c", &c)
	assert.ErrorIs(t, p.Read(parse(t, `{"c":""}`)), ErrCast)
}

func TestRegisterCaster_Custom(t *testing.T) {
	type level int
	RegisterCaster[string, level](CasterFuncs[string, level]{
		ToFunc: func(s string) (level, bool) {
			switch s {
			case "low":
				return 1, true
			case "high":
				return 2, true
			}
			return 0, false
		},
		FromFunc: func(l level) string {
			if l == 2 {
				return "high"
			}
			return "low"
		},
	})
	assert.True(t, HasCaster[string, level]())

	v, ok := Cast[level](document.NewString("high"))
	require.True(t, ok)
	assert.Equal(t, level(2), v)

	n, err := Uncast(level(1))
	require.NoError(t, err)
	s, _ := n.AsString()
	assert.Equal(t, "low", s)
}

func TestBind_UnsupportedType(t *testing.T) {
	var p Properties
	var ch chan int
	Bind(&p, "ch", &ch)

	assert.ErrorIs(t, p.Err(), ErrUnsupportedType)
	assert.Empty(t, p.Props())
	assert.ErrorIs(t, p.Read(document.NewObject()), ErrUnsupportedType)
}

func TestReadPropertyAndSetProps(t *testing.T) {
	o := newTestObject()

	require.NoError(t, o.ReadProperty(parse(t, `{"name":"solo"}`), "name"))
	assert.Equal(t, "solo", o.name)
	assert.ErrorIs(t, o.ReadProperty(document.NewObject(), "nope"), ErrUnknownProperty)

	require.NoError(t, o.SetProps(parse(t, `{"floatValue":3}`)), "required bindings are not enforced")
	assert.Equal(t, float32(3), o.floatValue)
}

func TestBindValue_Reactive(t *testing.T) {
	var p Properties
	hp := NewFA(10)
	var seen []int
	unsubscribe := hp.Subscribe(func(v int) { seen = append(seen, v) })
	BindValue[int](&p, "hp", hp)

	require.NoError(t, p.Read(parse(t, `{"hp":25}`)))
	assert.Equal(t, 25, hp.Get())
	assert.Equal(t, []int{25}, seen)
	assert.Equal(t, uint64(1), hp.Version())

	unsubscribe()
	hp.Set(30)
	assert.Equal(t, []int{25}, seen)
	assert.Equal(t, `{"hp":30}`, dump(t, &p))
}

func TestRelease_FreesOwnedPayloads(t *testing.T) {
	baseline := access.Live()

	type label struct {
		Properties
		Text string
	}
	child := &label{}
	Bind(&child.Properties, "text", &child.Text)

	o := newTestObject()
	BindNested(&o.Properties, "label", child, Optional)
	require.NoError(t, o.Read(parse(t, `{"boolValue":true,"name":"crate","label":{"text":"wooden"}}`)))
	assert.Greater(t, access.Live(), baseline)

	o.Release()
	assert.Equal(t, baseline, access.Live())

	_, ok := o.Snapshot("name")
	assert.False(t, ok)
	assert.Equal(t, "crate", o.name, "released slots do not touch the bound fields")

	require.NoError(t, o.Read(parse(t, `{"boolValue":false,"name":"barrel"}`)))
	assert.Equal(t, "barrel", o.name)
	o.Release()
	assert.Equal(t, baseline, access.Live())
}
