package loader

import (
	"github.com/dustin/go-humanize"
)

// Counters tallies the rows of one file or one run.
//
// The classification counters (Creations to NotCommercial) are only filled by
// update passes. Total counts every row read. A completed run persists every
// row that was not skipped (unsupported code) or rejected (missing
// identifier); after a store error Persisted only counts the writes the store
// accepted. With the bulk store a write is accepted once queued.
type Counters struct {
	Creations     int `json:"creations"`
	Modifications int `json:"modifications"`
	Deletions     int `json:"deletions"`
	Commercial    int `json:"commercial"`
	NotCommercial int `json:"not_commercial"`

	Total     int `json:"total"`
	Persisted int `json:"persisted"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`
}

// count increments the counter bound to k. Prior-update markers and
// unsupported codes have none.
func (c *Counters) count(k Kind) {
	switch k {
	case KindCreation:
		c.Creations++
	case KindNewUpdate:
		c.Modifications++
	case KindDeletion:
		c.Deletions++
	case KindCommercial:
		c.Commercial++
	case KindNonCommercial:
		c.NotCommercial++
	}
}

// Merge adds o to c.
func (c *Counters) Merge(o Counters) {
	c.Creations += o.Creations
	c.Modifications += o.Modifications
	c.Deletions += o.Deletions
	c.Commercial += o.Commercial
	c.NotCommercial += o.NotCommercial
	c.Total += o.Total
	c.Persisted += o.Persisted
	c.Skipped += o.Skipped
	c.Rejected += o.Rejected
}

// stockAttrs returns the log attributes of a stock load.
func (c Counters) stockAttrs() []any {
	return []any{
		"total", humanize.Comma(int64(c.Total)),
		"persisted", humanize.Comma(int64(c.Persisted)),
		"rejected", humanize.Comma(int64(c.Rejected)),
	}
}

// updateAttrs returns the log attributes of an update pass.
func (c Counters) updateAttrs() []any {
	return append([]any{
		"creations", humanize.Comma(int64(c.Creations)),
		"modifications", humanize.Comma(int64(c.Modifications)),
		"deletions", humanize.Comma(int64(c.Deletions)),
		"commercial", humanize.Comma(int64(c.Commercial)),
		"not_commercial", humanize.Comma(int64(c.NotCommercial)),
		"skipped", humanize.Comma(int64(c.Skipped)),
	}, c.stockAttrs()...)
}
