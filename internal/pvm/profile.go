package pvm

import (
	"io"

	"github.com/google/pprof/profile"
)

// Profile accumulates one pprof sample per opcode (spec §4.6 "Profiling"): each call
// to Count bumps the sample value for that opcode's synthesized Location/Function,
// building an in-memory *profile.Profile the dispatch loop can later write out in the
// standard pprof wire format, viewable with `go tool pprof`.
type Profile struct {
	prof   *profile.Profile
	counts map[string]*profile.Sample
	nextID uint64
}

// NewProfile creates an empty instruction-count profile.
func NewProfile() *Profile {
	return &Profile{
		prof: &profile.Profile{
			SampleType: []*profile.ValueType{{Type: "instructions", Unit: "count"}},
			PeriodType: &profile.ValueType{Type: "instructions", Unit: "count"},
			Period:     1,
		},
		counts: make(map[string]*profile.Sample),
	}
}

// Count records one execution of the named opcode, creating its sample on first use.
func (p *Profile) Count(name string) {
	s, ok := p.counts[name]
	if !ok {
		p.nextID++
		fn := &profile.Function{ID: p.nextID, Name: name, SystemName: name}
		loc := &profile.Location{ID: p.nextID, Line: []profile.Line{{Function: fn}}}
		p.prof.Function = append(p.prof.Function, fn)
		p.prof.Location = append(p.prof.Location, loc)

		s = &profile.Sample{Location: []*profile.Location{loc}, Value: []int64{0}}
		p.prof.Sample = append(p.prof.Sample, s)
		p.counts[name] = s
	}
	s.Value[0]++
}

// Samples returns the opcode names seen so far and their counts, for callers that want
// the numbers without going through the pprof wire format.
func (p *Profile) Samples() map[string]int64 {
	out := make(map[string]int64, len(p.counts))
	for name, s := range p.counts {
		out[name] = s.Value[0]
	}
	return out
}

// PrintProfile writes the accumulated profile in the gzipped pprof wire format.
func (p *Profile) PrintProfile(w io.Writer) error {
	return p.prof.Write(w)
}

// ResetProfile discards every accumulated count, starting from a fresh accumulator.
func (p *Profile) ResetProfile() {
	*p = *NewProfile()
}
