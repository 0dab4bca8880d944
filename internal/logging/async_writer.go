package logging

import (
	"os"
	"sync"
	"sync/atomic"
)

// AsyncWriter hands log lines to a background goroutine so the caller never
// blocks on disk. Lines are dropped when the buffer is full.
type AsyncWriter struct {
	path     string
	buffer   chan []byte
	file     *os.File
	rotation *LogRotation
	written  int64
	dropped  atomic.Uint64
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func NewAsyncWriter(path string, bufferSize int, rotation *LogRotation) (*AsyncWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	aw := &AsyncWriter{
		path:     path,
		buffer:   make(chan []byte, bufferSize),
		file:     file,
		rotation: rotation,
		written:  info.Size(),
		done:     make(chan struct{}),
	}

	aw.wg.Add(1)
	go aw.writeLoop()

	return aw, nil
}

// Write implements io.Writer. The slice is copied because slog reuses its
// buffers once Write returns.
func (aw *AsyncWriter) Write(data []byte) (int, error) {
	line := make([]byte, len(data))
	copy(line, data)

	select {
	case aw.buffer <- line:
	default:
		aw.dropped.Add(1)
	}
	return len(data), nil
}

// Dropped returns how many lines were discarded because the buffer was full.
func (aw *AsyncWriter) Dropped() uint64 {
	return aw.dropped.Load()
}

func (aw *AsyncWriter) writeLoop() {
	defer aw.wg.Done()
	for {
		select {
		case data := <-aw.buffer:
			aw.write(data)
		case <-aw.done:
			for len(aw.buffer) > 0 {
				aw.write(<-aw.buffer)
			}
			return
		}
	}
}

func (aw *AsyncWriter) write(data []byte) {
	if aw.rotation != nil && aw.rotation.ShouldRotate(aw.written) {
		aw.rotate()
	}
	n, _ := aw.file.Write(data)
	aw.written += int64(n)
}

func (aw *AsyncWriter) rotate() {
	aw.file.Close()
	if _, err := aw.rotation.Rotate(aw.path); err != nil {
		// keep appending to the old file rather than losing lines
		aw.rotation.Failed()
	}
	file, err := os.OpenFile(aw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	aw.file = file
	aw.written = 0
}

// Close flushes buffered lines and closes the file.
func (aw *AsyncWriter) Close() error {
	var err error
	aw.once.Do(func() {
		close(aw.done)
		aw.wg.Wait()
		err = aw.file.Close()
	})
	return err
}
