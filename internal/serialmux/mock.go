package serialmux

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory SerialPorter for tests. Reads block
// until data is added or the port is closed.
type TestableSerialPort struct {
	mu       sync.Mutex
	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	readCond *sync.Cond

	// WriteError, if set, is returned by the next Write.
	WriteError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	closed     bool
}

func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.readBuf.Len() == 0 {
		p.readCond.Wait()
	}
	if p.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuf.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if err := p.WriteError; err != nil {
		p.WriteError = nil
		return 0, err
	}
	n, _ := p.writeBuf.Write(b)
	if p.ShortWrite && n > 0 {
		n--
	}
	return n, nil
}

// Close ends pending reads with io.EOF once buffered data is drained.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// AddReadData queues data for Read.
func (p *TestableSerialPort) AddReadData(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.WriteString(data)
	p.readCond.Broadcast()
}

// WrittenData returns everything written so far.
func (p *TestableSerialPort) WrittenData() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.String()
}

// ReplayPort plays back a recorded log of receiver lines, one line every
// Pace, so the tracker can run without hardware. Commands written to it are
// discarded.
type ReplayPort struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once
}

// NewReplayPort starts replaying r. The port reports io.EOF after the last
// line.
func NewReplayPort(r io.Reader, pace time.Duration) *ReplayPort {
	pr, pw := io.Pipe()
	p := &ReplayPort{pr: pr, pw: pw, done: make(chan struct{})}
	go p.play(r, pace)
	return p
}

// OpenReplayPort replays the file at path.
func OpenReplayPort(path string, pace time.Duration) (*ReplayPort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	p := NewReplayPort(f, pace)
	go func() {
		<-p.done
		f.Close()
	}()
	return p, nil
}

func (p *ReplayPort) play(r io.Reader, pace time.Duration) {
	scan := bufio.NewScanner(r)
	var ticker *time.Ticker
	if pace > 0 {
		ticker = time.NewTicker(pace)
		defer ticker.Stop()
	}
	for scan.Scan() {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-p.done:
				return
			}
		}
		if _, err := p.pw.Write(append(scan.Bytes(), '\n')); err != nil {
			return
		}
	}
	p.pw.CloseWithError(scan.Err())
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *ReplayPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *ReplayPort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.pr.Close()
	})
	return nil
}
