package fetch

import "io"

// meteredReader reports every chunk read from r.
type meteredReader struct {
	r      io.Reader
	report func(n int64)
}

func (m meteredReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		m.report(int64(n))
	}
	return n, err
}

// copyWithProgress copies src into dst, passing the size of each chunk to
// progress when it is set.
func copyWithProgress(dst io.Writer, src io.Reader, progress func(delta int64)) (int64, error) {
	if progress != nil {
		src = meteredReader{r: src, report: progress}
	}
	return io.Copy(dst, src)
}
