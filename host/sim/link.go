package sim

import (
	"io"
	"sync"
)

// Link is the simulated UART between device and host. Device output flows
// through a pipe to the host port; host writes queue up as console keys.
type Link struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	keys chan byte
	once sync.Once
}

// NewLink creates a link queueing up to keyBuf unread console keys
func NewLink(keyBuf int) *Link {
	r, w := io.Pipe()
	return &Link{r: r, w: w, keys: make(chan byte, keyBuf)}
}

// Write sends device output to the host. It blocks until the host reads.
func (l *Link) Write(b []byte) (int, error) {
	return l.w.Write(b)
}

// PollKey returns a pending console key without blocking
func (l *Link) PollKey() (byte, bool) {
	select {
	case k := <-l.keys:
		return k, true
	default:
		return 0, false
	}
}

// Host returns the host end, a serial.Port
func (l *Link) Host() *HostPort {
	return &HostPort{link: l}
}

// Close ends the link; pending and later reads fail with io.ErrClosedPipe
func (l *Link) Close() error {
	l.once.Do(func() {
		l.w.CloseWithError(io.ErrClosedPipe)
	})
	return nil
}

// HostPort is the host side of a Link
type HostPort struct {
	link *Link
}

func (p *HostPort) Read(b []byte) (int, error) {
	return p.link.r.Read(b)
}

// Write queues console keys. Keys beyond the queue size are dropped, as a
// UART without flow control would.
func (p *HostPort) Write(b []byte) (int, error) {
	for _, k := range b {
		select {
		case p.link.keys <- k:
		default:
		}
	}
	return len(b), nil
}

func (p *HostPort) Close() error {
	return p.link.Close()
}

func (p *HostPort) Flush() error {
	return nil
}
