// Package customers classifies clients as new or repeat from their occurrence
// count across the complete, unfiltered transaction history.
package customers

// RepeatThreshold is the occurrence count from which a client is a repeat customer.
const RepeatThreshold = 2

// Counts maps a client identity to the number of transactions it owns.
type Counts map[string]int

// Count tallies occurrences of every identity in keys.
func Count(keys []string) Counts {
	counts := make(Counts, len(keys))
	for _, key := range keys {
		counts[key]++
	}
	return counts
}

// IsRepeat reports whether the client occurs at least RepeatThreshold times.
func (c Counts) IsRepeat(key string) bool {
	return c[key] >= RepeatThreshold
}

// Classifier labels clients using counts fixed at construction time.
type Classifier struct {
	counts Counts
}

// NewClassifier counts keys once; later filtering of the same history never
// changes a client's label.
func NewClassifier(keys []string) *Classifier {
	return &Classifier{counts: Count(keys)}
}

// Counts returns the occurrence counts backing the classifier.
func (c *Classifier) Counts() Counts {
	return c.counts
}

// IsRepeat reports whether key belongs to a repeat client.
func (c *Classifier) IsRepeat(key string) bool {
	return c.counts.IsRepeat(key)
}
