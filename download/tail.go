package download

// tailBuffer keeps the most recent lines written to it.
type tailBuffer struct {
	lines []string
	next  int
	full  bool
}

func newTailBuffer(size int) *tailBuffer {
	if size < 1 {
		size = 1
	}
	return &tailBuffer{lines: make([]string, size)}
}

func (b *tailBuffer) Push(line string) {
	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

// Lines returns the retained lines, oldest first.
func (b *tailBuffer) Lines() []string {
	if !b.full {
		return append([]string(nil), b.lines[:b.next]...)
	}
	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}
