package progress

import (
	"bytes"
	"strings"
	"testing"

	"openenterprise/emsflasher/internal/emsconst"
	"openenterprise/emsflasher/internal/romimage"
	"openenterprise/emsflasher/internal/updateplan"
)

func TestStartAccumulatesWriteFileTotals(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, false)

	rom := &romimage.Rom{Offset: 0, Size: emsconst.EraseBlockSize}
	cmds := []updateplan.Command{{Kind: updateplan.WriteFile, Rom: rom}}
	r.Start(cmds)

	if r.types[WriteFile].total != uint64(rom.Size) {
		t.Fatalf("got writef total %d, want %d", r.types[WriteFile].total, rom.Size)
	}
	if r.types[Erase].total != 1 {
		t.Fatalf("got erase total %d, want 1 (block-aligned destination)", r.types[Erase].total)
	}
}

func TestStartMoveCountsBothReadAndWrite(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, false)

	rom := &romimage.Rom{Offset: emsconst.EraseBlockSize, Size: emsconst.EraseBlockSize}
	cmds := []updateplan.Command{{Kind: updateplan.Move, Rom: rom}}
	r.Start(cmds)

	if r.types[Read].total != uint64(rom.Size) || r.types[Write].total != uint64(rom.Size) {
		t.Fatalf("expected move to count toward both read and write totals, got read=%d write=%d",
			r.types[Read].total, r.types[Write].total)
	}
}

func TestReportDecrementsRemainAndRendersPercentage(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, false)

	rom := &romimage.Rom{Offset: 0, Size: emsconst.ReadBlockSize * 4}
	r.Start([]updateplan.Command{{Kind: updateplan.WriteFile, Rom: rom}})

	r.Report(WriteFile, emsconst.ReadBlockSize)
	r.Report(WriteFile, emsconst.ReadBlockSize)

	if r.types[WriteFile].remain != uint64(rom.Size)-2*emsconst.ReadBlockSize {
		t.Fatalf("got remain %d, want %d", r.types[WriteFile].remain, uint64(rom.Size)-2*emsconst.ReadBlockSize)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	last := lines[len(lines)-1]
	if !strings.Contains(last, "50%") {
		t.Fatalf("expected a 50%% line after writing half the bytes, got %q", last)
	}
}

func TestNewlineOnlyEmittedAfterLiveRender(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, true)
	r.Start(nil)
	r.Refresh()
	r.Newline()
	if !strings.HasSuffix(out.String(), "\n") {
		t.Fatalf("expected trailing newline after Newline(), got %q", out.String())
	}
}
