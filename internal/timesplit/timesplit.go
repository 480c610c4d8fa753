// Package timesplit cuts [start, end] millisecond intervals at local day or
// hour boundaries so that every piece lies within a single bucket.
package timesplit

import (
	"fmt"
	"time"
)

// Unit is the boundary granularity used by Split.
type Unit int

const (
	// Day splits at local midnight.
	Day Unit = iota
	// HourOfWeek splits at the top of every local hour.
	HourOfWeek
)

func (u Unit) String() string {
	switch u {
	case Day:
		return "day"
	case HourOfWeek:
		return "hour-of-week"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Piece is a sub-interval of a split. It is attributed to the unit that
// contains Start; an End that lands on a boundary still belongs to the
// earlier unit.
type Piece struct {
	Start int64
	End   int64
}

// Duration returns End - Start in milliseconds.
func (p Piece) Duration() int64 {
	return p.End - p.Start
}

// Split clips [start, end] at every unit boundary strictly inside it. The
// pieces' durations sum to end - start. A zero-length interval yields one
// zero-length piece; an inverted interval yields nil.
func Split(start, end int64, unit Unit, loc *time.Location) []Piece {
	if end < start {
		return nil
	}

	var pieces []Piece
	cur := start
	for {
		boundary := NextBoundary(cur, unit, loc)
		if end <= boundary {
			pieces = append(pieces, Piece{Start: cur, End: end})
			return pieces
		}
		pieces = append(pieces, Piece{Start: cur, End: boundary})
		cur = boundary
	}
}

// Floor returns the start of the unit containing ms.
func Floor(ms int64, unit Unit, loc *time.Location) int64 {
	t := time.UnixMilli(ms).In(location(loc))
	switch unit {
	case HourOfWeek:
		return hourFloor(t).UnixMilli()
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).UnixMilli()
	}
}

// NextBoundary returns the first unit boundary strictly after ms.
func NextBoundary(ms int64, unit Unit, loc *time.Location) int64 {
	t := time.UnixMilli(ms).In(location(loc))
	if unit == HourOfWeek {
		return hourFloor(t).Add(time.Hour).UnixMilli()
	}
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
	// time.Date normalises a missing local midnight forward; guard against a
	// zone transition ever yielding a non-advancing boundary.
	if next.UnixMilli() <= ms {
		next = hourFloor(t).Add(time.Hour)
	}
	return next.UnixMilli()
}

// hourFloor drops the local minutes and seconds from t. It works on the
// absolute instant, so a repeated wall clock hour after a DST fall-back is
// still a distinct hour.
func hourFloor(t time.Time) time.Time {
	return t.Add(-(time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())))
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
