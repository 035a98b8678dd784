package vamana

// heapItem is one scored candidate in a beam search frontier or
// result set. Score follows the package-wide convention: higher is
// always better.
type heapItem struct {
	ordinal int32
	score   float32
}

// maxScoreHeap pops the highest-score item first — the beam search
// candidate frontier, expanded best-first.
type maxScoreHeap []heapItem

func (h maxScoreHeap) Len() int            { return len(h) }
func (h maxScoreHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxScoreHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *maxScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
func (h maxScoreHeap) Peek() heapItem { return h[0] }

// minScoreHeap pops the lowest-score item first — used to hold a
// bounded result set so the current worst candidate can be evicted in
// O(log n) as better candidates are found.
type minScoreHeap []heapItem

func (h minScoreHeap) Len() int            { return len(h) }
func (h minScoreHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minScoreHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
func (h minScoreHeap) Peek() heapItem { return h[0] }
