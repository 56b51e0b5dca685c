package sst

import "sort"

// connLessFunc compares two connections for ordering purposes.
type connLessFunc func(a, b *Connection) bool

// ConnMultiSorter implements sort.Interface over a slice of connections,
// applying a sequence of less-functions in priority order. Ported from
// the teacher's node.go MultiSorter/OrderedBy and retargeted at
// *Connection: not named by the specification, but useful ambient
// functionality (ranking peers by health when building a read quorum)
// that touches none of the stated Non-goals.
type ConnMultiSorter struct {
	conns []*Connection
	less  []connLessFunc
}

// OrderedBy returns a sorter that orders by the given less-functions, in
// order, breaking ties with each successive function.
func OrderedBy(less ...connLessFunc) *ConnMultiSorter {
	return &ConnMultiSorter{less: less}
}

// Sort sorts conns in place according to the less-functions supplied to OrderedBy.
func (ms *ConnMultiSorter) Sort(conns []*Connection) {
	ms.conns = conns
	sort.Sort(ms)
}

func (ms *ConnMultiSorter) Len() int      { return len(ms.conns) }
func (ms *ConnMultiSorter) Swap(i, j int) { ms.conns[i], ms.conns[j] = ms.conns[j], ms.conns[i] }

func (ms *ConnMultiSorter) Less(i, j int) bool {
	p, q := ms.conns[i], ms.conns[j]
	var k int
	for k = 0; k < len(ms.less)-1; k++ {
		switch {
		case ms.less[k](p, q):
			return true
		case ms.less[k](q, p):
			return false
		}
	}
	return ms.less[k](p, q)
}

// ByID sorts connections by peer id in increasing order.
var ByID connLessFunc = func(a, b *Connection) bool { return a.id < b.id }

// ByLastError sorts connections with a non-nil LastErr after those without one.
var ByLastError connLessFunc = func(a, b *Connection) bool {
	return a.LastErr() == nil && b.LastErr() != nil
}

// ByLatency sorts connections by ascending observed latency.
var ByLatency connLessFunc = func(a, b *Connection) bool { return a.Latency() < b.Latency() }
