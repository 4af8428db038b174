// Package blocklayout lays out the per-process x[] and lsum[] arrays
// described in spec §3: a concatenation of fixed-size blocks, each
// prefixed by a one-word header recording its global supernode id, plus
// an ilsum-style offset table. x[] holds only this process's
// locally-owned (diagonal) X-blocks; lsum[] holds one accumulator per
// block row this process's mesh row owns, regardless of which mesh
// column eventually supplies each contribution.
package blocklayout

import (
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/super"
)

// HeaderWords is the one-word header (XK_H/LSUM_H in the reference
// source) prepended to every block, recording its global supernode id.
const HeaderWords = 1

// XLayout indexes this process's own diagonal-owned X-blocks.
type XLayout struct {
	NRHS    int
	offsets map[int]int // global supernode id -> data start offset (after header)
	Size    int
}

// BuildX lays out one block per diagonal supernode this process owns.
func BuildX(idx *super.Index, g *grid.Grid, nrhs int) *XLayout {
	l := &XLayout{NRHS: nrhs, offsets: make(map[int]int)}
	off := 0
	for k := 0; k < idx.NSupers(); k++ {
		if !g.IsDiagonal(k) {
			continue
		}
		off += HeaderWords
		l.offsets[k] = off
		off += idx.SuperSize(k) * nrhs
	}
	l.Size = off
	return l
}

// Offset returns the data start offset (after the header word) for
// diagonal supernode k, and whether k is locally owned.
func (l *XLayout) Offset(k int) (int, bool) {
	off, ok := l.offsets[k]
	return off, ok
}

// NewBuffer allocates a zeroed x[] buffer of this layout's size, with
// every block's header word written.
func (l *XLayout) NewBuffer() []float64 {
	buf := make([]float64, l.Size)
	for k, off := range l.offsets {
		buf[off-HeaderWords] = float64(k)
	}
	return buf
}

// RowLayout indexes this process's mesh-row-owned lsum[] block rows.
type RowLayout struct {
	NRHS int
	// Ilsum[lbi] is the data start offset (after header) for local block
	// row lbi; length NLocalBlockRows+1, with Ilsum[last] == Size+HeaderWords, so
	// block-i's span is Ilsum[i]-HeaderWords .. Ilsum[i+1]-HeaderWords.
	Ilsum []int
	// GlobalRow[lbi] is the global supernode id owning local block row
	// lbi (== lbi*Pr + myrow), valid only while < idx.NSupers().
	GlobalRow []int
	Size      int
}

// BuildRow lays out one accumulator per block row g's mesh row owns.
func BuildRow(idx *super.Index, g *grid.Grid, nrhs int) *RowLayout {
	nlb := idx.NLocalBlockRows(g)
	l := &RowLayout{NRHS: nrhs, Ilsum: make([]int, nlb+1), GlobalRow: make([]int, nlb)}
	off := 0
	for lbi := 0; lbi < nlb; lbi++ {
		row := lbi*g.Pr + g.MyRow()
		l.GlobalRow[lbi] = row
		l.Ilsum[lbi] = off + HeaderWords
		if row < idx.NSupers() {
			off += HeaderWords + idx.SuperSize(row)*nrhs
		}
	}
	l.Ilsum[nlb] = off + HeaderWords
	l.Size = off
	return l
}

// NewBuffer allocates a zeroed lsum[]-shaped buffer with headers written.
func (l *RowLayout) NewBuffer(idx *super.Index) []float64 {
	buf := make([]float64, l.Size)
	for lbi, row := range l.GlobalRow {
		if row < idx.NSupers() {
			buf[l.Ilsum[lbi]-HeaderWords] = float64(row)
		}
	}
	return buf
}

// Block returns the data slice for local block row lbi (its header word
// sits immediately before index l.Ilsum[lbi]).
func (l *RowLayout) Block(buf []float64, lbi int) []float64 {
	return buf[l.Ilsum[lbi]:l.Ilsum[lbi+1]-HeaderWords]
}
