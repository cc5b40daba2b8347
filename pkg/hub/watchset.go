package hub

// watchSet is the append-only set of addresses the hub pushes for.
type watchSet struct {
	index map[string]struct{}
	order []string
}

func newWatchSet() *watchSet {
	return &watchSet{index: make(map[string]struct{})}
}

// add inserts addrs and returns the ones that were not present. Empty
// strings are skipped.
func (w *watchSet) add(addrs ...string) []string {
	var added []string
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if _, ok := w.index[a]; ok {
			continue
		}
		w.index[a] = struct{}{}
		w.order = append(w.order, a)
		added = append(added, a)
	}
	return added
}

func (w *watchSet) has(addr string) bool {
	_, ok := w.index[addr]
	return ok
}

func (w *watchSet) len() int {
	return len(w.order)
}

func (w *watchSet) list() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}
