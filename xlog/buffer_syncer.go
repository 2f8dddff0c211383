package xlog

import (
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/benz9527/xmetrics/lib/infra"
	"github.com/benz9527/xmetrics/lib/list"
)

type logRecord struct {
	startOffset uint64
	length      uint64
}

// xLogArena batches encoded log lines in one flat buffer. Records
// queue on a linked list so a partial flush failure keeps the
// unwritten tail.
type xLogArena struct {
	mu      sync.Mutex
	buf     []byte
	size    uint64
	wOffset uint64
	queue   list.LinkedList[*logRecord]
}

func (arena *xLogArena) reset() {
	if arena.wOffset == 0 {
		return
	}
	arena.wOffset = 0
}

func (arena *xLogArena) release() {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	arena.reset()
	arena.buf = nil
	arena.queue = nil
}

func (arena *xLogArena) allocate(size uint64) (uint64, bool) {
	if arena.wOffset+size > arena.size {
		return 0, false // Flush first
	}
	arena.wOffset += size
	return arena.wOffset - size, true
}

func (arena *xLogArena) cache(log []byte) bool {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	if arena.buf == nil || arena.queue == nil {
		return false
	}

	if offset, ok := arena.allocate(uint64(len(log))); ok {
		copy(arena.buf[offset:], log)
		_ = arena.queue.AppendValue(&logRecord{
			startOffset: offset,
			length:      uint64(len(log)),
		})
		return true
	}
	return false
}

func (arena *xLogArena) flush(writer io.WriteCloser) error {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	if arena.queue == nil {
		return nil
	}

	err := arena.queue.Foreach(func(idx int64, e *list.NodeElement[*logRecord]) error {
		if _, err := writer.Write(arena.buf[e.Value.startOffset : e.Value.startOffset+e.Value.length]); err != nil {
			return err
		}
		arena.queue.Remove(e)
		return nil
	})
	if err != nil {
		return err
	}
	arena.reset()
	return nil
}

var _ XLogCloseableWriteSyncer = (*XLogBufferSyncer)(nil)

// XLogBufferSyncer batches writes into an arena and flushes them on a
// ticker, off the write path. The periodic flush runs on the shared
// ants goroutine pool.
type XLogBufferSyncer struct {
	outWriter     io.WriteCloser
	flushInterval time.Duration
	arena         *xLogArena
	ticker        *time.Ticker
	closeC        chan struct{}
	closeOnce     sync.Once
}

func (syncer *XLogBufferSyncer) initialize() {
	if syncer.arena.buf == nil {
		syncer.arena.buf = make([]byte, syncer.arena.size)
	}
	if syncer.arena.queue == nil {
		syncer.arena.queue = list.NewLinkedList[*logRecord]()
	}
	if syncer.flushInterval <= 0 {
		syncer.flushInterval = 200 * time.Millisecond
	}
	syncer.ticker = time.NewTicker(syncer.flushInterval)
	syncer.closeC = make(chan struct{})
	go syncer.flushLoop()
}

// Sync implements zapcore.WriteSyncer.
func (syncer *XLogBufferSyncer) Sync() error {
	return syncer.arena.flush(syncer.outWriter)
}

// Write implements zapcore.WriteSyncer.
func (syncer *XLogBufferSyncer) Write(log []byte) (n int, err error) {
	cached := syncer.arena.cache(log)
	if !cached {
		if err := syncer.arena.flush(syncer.outWriter); err != nil {
			return 0, err
		}
		if !syncer.arena.cache(log) {
			return 0, infra.NewErrorStack("[XLogger] unable to cache log in buffer")
		}
	}
	return len(log), nil
}

// Stop flushes once more, then releases the arena and the ticker.
func (syncer *XLogBufferSyncer) Stop() error {
	err := syncer.Sync()
	syncer.closeOnce.Do(func() {
		close(syncer.closeC)
	})
	return err
}

func (syncer *XLogBufferSyncer) flushLoop() {
	for {
		select {
		case <-syncer.closeC:
			syncer.ticker.Stop()
			syncer.arena.release()
			return
		case <-syncer.ticker.C:
			// Hand the IO to the pool; a slow writer must not make
			// the loop skip close events.
			if err := ants.Submit(func() {
				_ = syncer.Sync()
			}); err != nil {
				_ = syncer.Sync()
			}
		}
	}
}
