package cache

// fifo orders keys by first insertion. Re-inserting a tracked key keeps its
// position and reads are ignored, so this is not LRU.
type fifo struct {
	// queue[0] is the oldest key.
	queue []string
	set   map[string]struct{}
}

func newFIFO() *fifo {
	return &fifo{set: make(map[string]struct{})}
}

func (f *fifo) push(k string) {
	if _, ok := f.set[k]; ok {
		return
	}
	f.queue = append(f.queue, k)
	f.set[k] = struct{}{}
}

// pop removes and returns the oldest key.
func (f *fifo) pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	k := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.set, k)
	return k, true
}

func (f *fifo) remove(k string) {
	if _, ok := f.set[k]; !ok {
		return
	}
	delete(f.set, k)
	for i, v := range f.queue {
		if v == k {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
}

// keys returns tracked keys, oldest first.
func (f *fifo) keys() []string {
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}

func (f *fifo) reset() {
	f.queue = nil
	f.set = make(map[string]struct{})
}
