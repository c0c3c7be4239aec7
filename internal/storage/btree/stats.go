package btree

import (
	"fmt"
	"io"

	"bptreefile/internal/storage/page"
)

// Stats summarizes the shape of an open tree for the CLI's stats
// command and for tests asserting split-cascade depth.
type Stats struct {
	Height          int
	NumIndexNodes   int
	NumLeaves       int
	NumEntries      int
	AvgFillPercent  float64
	InstanceID      string
}

// DumpStatistics walks the whole tree once, tallying node counts,
// entry counts, and average page fill.
func (t *Tree) DumpStatistics() (Stats, error) {
	root := t.rootPageID()
	st := Stats{InstanceID: t.InstanceID.String()}
	if root == page.InvalidPageID {
		return st, nil
	}

	var totalFillNum, totalFillDen int
	var walk func(pid page.PageID, depth int) error
	walk = func(pid page.PageID, depth int) error {
		buf, err := t.pool.PinPage(pid, false)
		if err != nil {
			return err
		}
		sp := page.Load(buf)
		if depth+1 > st.Height {
			st.Height = depth + 1
		}
		if sp.Type() == page.TypeLeaf {
			leaf := asLeaf(sp)
			st.NumLeaves++
			st.NumEntries += leaf.NumEntries()
			totalFillNum += sp.DataCapacity() - leaf.AvailableSpace()
			totalFillDen += sp.DataCapacity()
			return t.pool.UnpinPage(pid, false)
		}
		idx := asIndex(sp)
		st.NumIndexNodes++
		totalFillNum += sp.DataCapacity() - idx.AvailableSpace()
		totalFillDen += sp.DataCapacity()
		children := make([]page.PageID, 0, idx.NumEntries()+1)
		children = append(children, idx.LeftLink())
		for _, e := range idx.entries() {
			children = append(children, e.Child)
		}
		if err := t.pool.UnpinPage(pid, false); err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return st, newError("DumpStatistics", KindPinError, err)
	}
	if totalFillDen > 0 {
		st.AvgFillPercent = 100 * float64(totalFillNum) / float64(totalFillDen)
	}
	return st, nil
}

// Print writes a breadth-first, indented dump of every node: its page
// id, type, and entry keys, one line per node. Intended for the CLI's
// print command and for eyeballing small trees in tests.
func (t *Tree) Print(w io.Writer) error {
	root := t.rootPageID()
	if root == page.InvalidPageID {
		fmt.Fprintln(w, "(empty tree)")
		return nil
	}

	type queued struct {
		pid   page.PageID
		depth int
	}
	queue := []queued{{root, 0}}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]

		buf, err := t.pool.PinPage(q.pid, false)
		if err != nil {
			return newError("Print", KindPinError, err)
		}
		sp := page.Load(buf)
		indent := ""
		for i := 0; i < q.depth; i++ {
			indent += "  "
		}
		if sp.Type() == page.TypeLeaf {
			leaf := asLeaf(sp)
			fmt.Fprintf(w, "%sleaf[%d] prev=%d next=%d keys=%v\n",
				indent, q.pid, leaf.Prev(), leaf.Next(), leafKeys(leaf))
			if err := t.pool.UnpinPage(q.pid, false); err != nil {
				return newError("Print", KindPinError, err)
			}
			continue
		}
		idx := asIndex(sp)
		fmt.Fprintf(w, "%sindex[%d] leftLink=%d keys=%v\n",
			indent, q.pid, idx.LeftLink(), indexKeys(idx))
		queue = append(queue, queued{idx.LeftLink(), q.depth + 1})
		for _, e := range idx.entries() {
			queue = append(queue, queued{e.Child, q.depth + 1})
		}
		if err := t.pool.UnpinPage(q.pid, false); err != nil {
			return newError("Print", KindPinError, err)
		}
	}
	return nil
}

func leafKeys(n *leafNode) []int32 {
	entries := n.entries()
	out := make([]int32, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func indexKeys(n *indexNode) []int32 {
	entries := n.entries()
	out := make([]int32, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}
