package rsyncwire

import "io"

// CountingReader wraps an io.Reader, tallying the number of bytes that
// have passed through it. The sender/receiver drivers report this count
// as part of the end-of-transfer statistics (§3 "Statistics").
type CountingReader struct {
	R     io.Reader
	Count int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.Count += int64(n)
	return n, err
}

// CountingWriter wraps an io.Writer, tallying the number of bytes that
// have passed through it.
type CountingWriter struct {
	W     io.Writer
	Count int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.Count += int64(n)
	return n, err
}

// CounterPair wraps r and w in a CountingReader/CountingWriter pair, the
// standard way every Transfer is wired to its underlying transport so
// that statistics can be reported without threading counters through
// every call site.
func CounterPair(r io.Reader, w io.Writer) (*CountingReader, *CountingWriter) {
	return &CountingReader{R: r}, &CountingWriter{W: w}
}
