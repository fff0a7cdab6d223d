// statistics.go defines per-kind counters and their JSON-friendly snapshots.

package types

import (
	"sync/atomic"
)

type StatisticsItem struct {
	Count uint64 `json:",omitempty"`
	Bytes uint64 `json:",omitempty"`
}

type StatisticsSubSection struct {
	Video StatisticsItem `json:",omitempty"`
	Audio StatisticsItem `json:",omitempty"`
}

func (s StatisticsSubSection) Get(kind Kind) StatisticsItem {
	switch kind {
	case KindVideo:
		return s.Video
	case KindAudio:
		return s.Audio
	default:
		return StatisticsItem{}
	}
}

type CountersItem struct {
	Count atomic.Uint64
	Bytes atomic.Uint64
}

func (c *CountersItem) Increment(msgSize uint64) {
	c.Count.Add(1)
	c.Bytes.Add(msgSize)
}

func (c *CountersItem) ToStats() StatisticsItem {
	return StatisticsItem{
		Count: c.Count.Load(),
		Bytes: c.Bytes.Load(),
	}
}

// CountersSubSection is a set of counters, one per kind.
type CountersSubSection struct {
	Items [NumKinds]CountersItem
}

func (s *CountersSubSection) Increment(kind Kind, msgSize uint64) {
	if !kind.IsValid() {
		return
	}
	s.Items[kind.Index()].Increment(msgSize)
}

func (s *CountersSubSection) Get(kind Kind) *CountersItem {
	if !kind.IsValid() {
		return nil
	}
	return &s.Items[kind.Index()]
}

func (s *CountersSubSection) TotalCount() uint64 {
	var total uint64
	for idx := range s.Items {
		total += s.Items[idx].Count.Load()
	}
	return total
}

func (s *CountersSubSection) ToStats() StatisticsSubSection {
	return StatisticsSubSection{
		Video: s.Items[KindVideo.Index()].ToStats(),
		Audio: s.Items[KindAudio.Index()].ToStats(),
	}
}
