package audio

// Framer accumulates arbitrarily sized PCM chunks and yields fixed
// 512-sample windows for VAD inference. Bytes short of a full window stay
// buffered until more audio arrives, so the windows a stream produces do
// not depend on how the sender happened to chunk it.
type Framer struct {
	buf []byte
}

// NewFramer creates an empty framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Push appends a PCM chunk and returns every complete window now
// available, in arrival order. Pushing an empty chunk returns no windows
// and leaves the buffer untouched.
func (f *Framer) Push(chunk []byte) [][]int16 {
	f.buf = append(f.buf, chunk...)

	var windows [][]int16
	for len(f.buf) >= WindowBytes {
		windows = append(windows, BytesToInt16(f.buf[:WindowBytes]))
		f.buf = f.buf[WindowBytes:]
	}
	if len(windows) > 0 {
		// Re-home the tail so the drained prefix does not pin the old
		// backing array.
		f.buf = append([]byte(nil), f.buf...)
	}
	return windows
}

// Pending returns the number of buffered bytes short of a full window.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards any buffered partial window.
func (f *Framer) Reset() {
	f.buf = nil
}
