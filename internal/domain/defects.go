package domain

import (
	"fmt"
	"sort"
)

// MaxDefectSamples bounds the messages kept by a DefectLog.
const MaxDefectSamples = 25

// DefectLog counts recoverable defects by kind and keeps the first few
// messages in encounter order.
type DefectLog struct {
	Counts  map[string]int // keyed by ErrorKindName
	Samples []string
}

// Record adds one defect.
func (l *DefectLog) Record(err error) {
	if l.Counts == nil {
		l.Counts = make(map[string]int)
	}
	l.Counts[ErrorKindName(err)]++
	if len(l.Samples) < MaxDefectSamples {
		l.Samples = append(l.Samples, err.Error())
	}
}

// Merge folds other into l, keeping l's samples first.
func (l *DefectLog) Merge(other DefectLog) {
	for k, c := range other.Counts {
		if l.Counts == nil {
			l.Counts = make(map[string]int)
		}
		l.Counts[k] += c
	}
	for _, s := range other.Samples {
		if len(l.Samples) >= MaxDefectSamples {
			break
		}
		l.Samples = append(l.Samples, s)
	}
}

// Count returns the number of defects of the given kind name.
func (l DefectLog) Count(kind string) int {
	return l.Counts[kind]
}

// Total returns the number of recorded defects of all kinds.
func (l DefectLog) Total() int {
	n := 0
	for _, c := range l.Counts {
		n += c
	}
	return n
}

// Summary returns "kind: count" lines sorted by kind.
func (l DefectLog) Summary() []string {
	if len(l.Counts) == 0 {
		return nil
	}

	kinds := make([]string, 0, len(l.Counts))
	for k := range l.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	lines := make([]string, len(kinds))
	for i, k := range kinds {
		lines[i] = fmt.Sprintf("%s: %d", k, l.Counts[k])
	}
	return lines
}
