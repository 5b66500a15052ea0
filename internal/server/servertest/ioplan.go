// Package servertest provides deterministic socket/timer fakes for testing
// the connection state machine in internal/server: scripted reads with
// delays, write chunking with delays, and a manually-fired timer.
//
// Grounded on original_source/server/test_io_plan.h (read_plan/write_plan
// builders) and test_traits.h (the test response factory plugged into the
// connection under test).
package servertest

import "time"

// ReadStep is one scripted read: Data to hand back, and Delay before the
// read is allowed to complete.
type ReadStep struct {
	Data  []byte
	Delay time.Duration
	// closed marks a step (created by Delay) that must not be extended by
	// a later Add; only the most recently added plain-data step is open.
	closed bool
}

// ReadPlan is a sequence of scripted reads replayed in order by Socket.Read.
// Mirrors read_plan: Add appends to or extends the last step's data, Delay
// always starts a new step.
type ReadPlan struct {
	steps []ReadStep
	next  int
}

// Add appends data to the plan: if the last step carries no delay and is
// still open for more data, the bytes are appended to it; otherwise a new
// step is started.
func (p *ReadPlan) Add(data string) *ReadPlan {
	if n := len(p.steps); n > 0 && !p.steps[n-1].closed {
		p.steps[n-1].Data = append(p.steps[n-1].Data, data...)
		return p
	}
	p.steps = append(p.steps, ReadStep{Data: []byte(data)})
	return p
}

// Delay appends a new step that produces no data and completes only after
// delay has elapsed, then closes it to further Add calls.
func (p *ReadPlan) Delay(delay time.Duration) *ReadPlan {
	p.steps = append(p.steps, ReadStep{Delay: delay, closed: true})
	return p
}

// Empty reports whether every scripted step has been consumed.
func (p *ReadPlan) Empty() bool { return p.next >= len(p.steps) }

func (p *ReadPlan) nextStep() (ReadStep, bool) {
	if p.Empty() {
		return ReadStep{}, false
	}
	s := p.steps[p.next]
	p.next++
	return s, true
}

// WriteStep is one scripted write-chunk limit: at most Size bytes are
// accepted by a single Socket.Write call, after waiting Delay.
type WriteStep struct {
	Size  int
	Delay time.Duration
	// closed marks a step (created by Delay) that must not be extended by
	// a later Add.
	closed bool
}

// WritePlan is a sequence of scripted write-chunk limits replayed in order
// by Socket.Write. Mirrors write_plan.
type WritePlan struct {
	steps []WriteStep
	next  int
}

// Add appends a chunk-size limit, extending the last step if it carries no
// delay and has no size yet, else starting a new step.
func (p *WritePlan) Add(size int) *WritePlan {
	if n := len(p.steps); n > 0 && !p.steps[n-1].closed && p.steps[n-1].Size == 0 {
		p.steps[n-1].Size = size
		return p
	}
	p.steps = append(p.steps, WriteStep{Size: size})
	return p
}

// Delay appends a step that accepts no bytes until delay has elapsed.
func (p *WritePlan) Delay(delay time.Duration) *WritePlan {
	p.steps = append(p.steps, WriteStep{Delay: delay, closed: true})
	return p
}

// Empty reports whether every scripted step has been consumed.
func (p *WritePlan) Empty() bool { return p.next >= len(p.steps) }

func (p *WritePlan) nextStep() (WriteStep, bool) {
	if p.Empty() {
		return WriteStep{}, false
	}
	s := p.steps[p.next]
	p.next++
	return s, true
}
