package inject

import "github.com/nao1215/linkweaver/internal/model"

// Queue is the ordered list of links still to be processed for one page.
// Links leave the queue in planner order. A canceled page is re-entered by
// calling Reset, which puts every link back.
type Queue struct {
	links []model.PlannedLink
	next  int
}

// NewQueue creates a queue holding links in the given order.
func NewQueue(links []model.PlannedLink) *Queue {
	q := &Queue{links: make([]model.PlannedLink, len(links))}
	copy(q.links, links)
	return q
}

// Next removes and returns the next link.
func (q *Queue) Next() (model.PlannedLink, bool) {
	if q.next >= len(q.links) {
		return model.PlannedLink{}, false
	}
	l := q.links[q.next]
	q.next++
	return l, true
}

// Len returns how many links are left.
func (q *Queue) Len() int {
	return len(q.links) - q.next
}

// Remaining returns the links not yet taken.
func (q *Queue) Remaining() []model.PlannedLink {
	out := make([]model.PlannedLink, q.Len())
	copy(out, q.links[q.next:])
	return out
}

// Reset puts every link back in the queue.
func (q *Queue) Reset() {
	q.next = 0
}
