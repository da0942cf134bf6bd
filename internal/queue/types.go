package queue

import "time"

// Item is a page waiting in the frontier.
type Item struct {
	URL       string // canonical
	Depth     int
	ParentURL string
	Timestamp time.Time

	seq uint64
}
