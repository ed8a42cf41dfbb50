package indus

import "sort"

// fragmentInterval is one half-open genomic interval contributed by a
// single fragment record, tagged with the assay-native barcode that
// produced it so weight resolution can be deferred to query time.
type fragmentInterval struct {
	start, end int
	barcode    uint64
}

type intervalTreeNode struct {
	interval fragmentInterval
	maxend   int
}

// intervalTree is an implicit balanced binary tree over half-open
// intervals, augmented with each subtree's maximum end coordinate so a
// query can prune branches that can't possibly overlap.
type intervalTree []intervalTreeNode

// chromIntervals accumulates fragment intervals for one chromosome of
// one assay until freeze builds the queryable tree.
type chromIntervals struct {
	raw    []fragmentInterval
	tree   intervalTree
	frozen bool
}

func (ci *chromIntervals) add(start, end int, barcode uint64) {
	ci.raw = append(ci.raw, fragmentInterval{start, end, barcode})
}

func (ci *chromIntervals) freeze() {
	in := ci.raw
	sort.Slice(in, func(i, j int) bool { return in[i].start < in[j].start })
	size := 1
	for size < len(in) {
		size *= 2
	}
	itree := make(intervalTree, size)
	for i := len(in); i < size; i++ {
		itree[i].maxend = -1
	}
	itree.importSlice(0, in)
	ci.tree = itree
	ci.frozen = true
	ci.raw = nil
}

func (itree intervalTree) importSlice(root int, in []fragmentInterval) int {
	mid := len(in) / 2
	node := intervalTreeNode{interval: in[mid], maxend: in[mid].end}
	if mid > 0 {
		if end := itree.importSlice(root*2+1, in[0:mid]); end > node.maxend {
			node.maxend = end
		}
	}
	if mid+1 < len(in) {
		if end := itree.importSlice(root*2+2, in[mid+1:]); end > node.maxend {
			node.maxend = end
		}
	}
	itree[root] = node
	return node.maxend
}

// query appends every interval overlapping [start,end) to out, using
// interval-tree semantics: a record contributes in full to every
// overlapping query window, never split by overlap length.
func (ci *chromIntervals) query(start, end int, out []fragmentInterval) []fragmentInterval {
	if !ci.frozen {
		panic("bug: chromIntervals.query called before freeze")
	}
	return ci.tree.query(0, start, end, out)
}

func (itree intervalTree) query(root, start, end int, out []fragmentInterval) []fragmentInterval {
	if root >= len(itree) || itree[root].maxend < start {
		return out
	}
	node := itree[root]
	if node.interval.start < end && node.interval.end > start {
		out = append(out, node.interval)
	}
	out = itree.query(root*2+1, start, end, out)
	out = itree.query(root*2+2, start, end, out)
	return out
}
