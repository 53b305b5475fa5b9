package acceptor

import "io"

// multiCloser closes every pipe belonging to a session, returning the
// first error encountered but always attempting to close all of them.
type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
