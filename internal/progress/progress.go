// Package progress renders a live transfer-progress line (percentage
// complete and estimated time remaining), the way updates.c's progress.c
// drives it: per-operation-type rolling-average throughput over the last
// few samples, falling back to a fixed assumed rate until real samples
// exist.
package progress

import (
	"fmt"
	"io"
	"time"

	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/updateplan"
)

// Kind identifies which operation a sample belongs to; each has its own
// throughput estimate since erase, write, writef, and read all move data
// at different rates.
type Kind int

const (
	Erase Kind = iota
	WriteFile
	Write
	Read
	numKinds
)

const stepsWindow = 8

// defaultRates are used until a Kind has accumulated at least one real
// sample; Erase's unit is seconds per block, the rest are bytes/second.
var defaultRates = [numKinds]float64{
	Erase:     1,
	WriteFile: 17500,
	Write:     17500,
	Read:      43500,
}

type typeState struct {
	total, remain uint64
	steps         [stepsWindow]time.Duration
	stepsCount    int
	stepsCur      int
}

// Reporter tracks progress across a whole update run and renders a status
// line to out.
type Reporter struct {
	types     [numKinds]typeState
	lastTime  time.Time
	out       io.Writer
	live      bool // true for carriage-return updates, false for one line per report
	crPrinted bool
}

// NewReporter returns a Reporter writing to out. live selects whether
// updates overwrite the current line (interactive terminal) or each print
// a fresh line (redirected output).
func NewReporter(out io.Writer, live bool) *Reporter {
	return &Reporter{out: out, live: live}
}

// Start resets all counters and computes the total bytes (and erase count)
// the given command stream will move, the same accounting flash primitives
// use to decide when an implicit erase happens.
func (r *Reporter) Start(cmds []updateplan.Command) {
	for i := range r.types {
		r.types[i] = typeState{}
	}

	for _, c := range cmds {
		switch c.Kind {
		case updateplan.WriteFile:
			r.addErase(c.Rom.Offset, c.Rom.Size)
			r.types[WriteFile].total += uint64(c.Rom.Size)
		case updateplan.Move:
			r.addErase(c.Rom.Offset, c.Rom.Size)
			r.types[Write].total += uint64(c.Rom.Size)
			r.types[Read].total += uint64(c.Rom.Size)
		case updateplan.Write:
			r.addErase(c.Rom.Offset, c.Rom.Size)
			r.types[Write].total += uint64(c.Rom.Size)
		case updateplan.Read:
			r.types[Read].total += uint64(c.Rom.Size)
		case updateplan.Erase:
			r.types[Erase].total++
		}
	}

	for i := range r.types {
		r.types[i].remain = r.types[i].total
	}
	r.lastTime = time.Time{}
	r.crPrinted = false
}

func (r *Reporter) addErase(destOffset, size uint32) {
	if destOffset%emsconst.EraseBlockSize == 0 {
		blocks := (uint64(size) + emsconst.EraseBlockSize - 1) / emsconst.EraseBlockSize
		r.types[Erase].total += blocks
	}
}

// Report records a completed chunk transfer of the given kind and
// re-renders the status line. bytes is ignored for Erase (counted as one
// block).
func (r *Reporter) Report(kind Kind, bytes uint32) {
	if kind == Erase {
		if r.types[Erase].remain > 0 {
			r.types[Erase].remain--
		}
	} else {
		if uint64(bytes) > r.types[kind].remain {
			r.types[kind].remain = 0
		} else {
			r.types[kind].remain -= uint64(bytes)
		}
	}

	now := time.Now()
	if !r.lastTime.IsZero() {
		if dt := now.Sub(r.lastTime); dt > 0 {
			t := &r.types[kind]
			t.steps[t.stepsCur] = dt
			if t.stepsCur == t.stepsCount {
				t.stepsCount++
			}
			t.stepsCur = (t.stepsCur + 1) % stepsWindow
		}
	}
	r.lastTime = now

	r.render()
}

// Refresh re-renders the status line without recording a new sample, used
// right after printing a "Writing ..." announcement line.
func (r *Reporter) Refresh() {
	r.render()
}

func (r *Reporter) render() {
	var totalBytes, doneBytes uint64
	var remainSeconds float64

	for i := range r.types {
		t := &r.types[i]
		if Kind(i) != Erase {
			totalBytes += t.total
			doneBytes += t.total - t.remain
		}

		var elapsed time.Duration
		for j := 0; j < t.stepsCount; j++ {
			elapsed += t.steps[j]
		}

		rate := 0.0
		if t.stepsCount > 0 && elapsed > 0 {
			if Kind(i) != Erase {
				rate = float64(emsconst.ReadBlockSize) * float64(t.stepsCount) / elapsed.Seconds()
			} else {
				rate = elapsed.Seconds() / float64(t.stepsCount)
			}
		}
		if rate == 0 {
			rate = defaultRates[i]
		}

		if Kind(i) == Erase {
			remainSeconds += float64(t.remain) * rate
		} else if rate > 0 {
			remainSeconds += float64(t.remain) / rate
		}
	}

	pct := 0
	if totalBytes > 0 {
		pct = int(doneBytes * 100 / totalBytes)
	}

	mm := int(remainSeconds+0.99) / 60
	ss := int(remainSeconds+0.99) % 60

	if r.live {
		fmt.Fprintf(r.out, " %3d%% %02d:%02d\r", pct, mm, ss)
	} else {
		fmt.Fprintf(r.out, " %3d%% %02d:%02d\n", pct, mm, ss)
	}
	r.crPrinted = r.live
}

// Newline ensures the cursor is at the start of a fresh line, emitting one
// only if the last render ended in a bare carriage return.
func (r *Reporter) Newline() {
	if r.crPrinted {
		fmt.Fprintln(r.out)
		r.crPrinted = false
	}
}
