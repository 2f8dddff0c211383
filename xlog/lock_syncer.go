package xlog

import (
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

var _ XLogCloseableWriteSyncer = (*xLogLockSyncer)(nil)

// xLogLockSyncer serializes writes to one writer with a plain mutex.
// The unbuffered counterpart of XLogBufferSyncer.
type xLogLockSyncer struct {
	outWriter io.WriteCloser
	closeC    chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// Sync implements zapcore.WriteSyncer.
func (syncer *xLogLockSyncer) Sync() error {
	return nil
}

// Write implements zapcore.WriteSyncer.
func (syncer *xLogLockSyncer) Write(log []byte) (n int, err error) {
	syncer.mu.Lock()
	defer syncer.mu.Unlock()

	return syncer.outWriter.Write(log)
}

func (syncer *xLogLockSyncer) Stop() (err error) {
	syncer.closeOnce.Do(func() {
		close(syncer.closeC)
	})
	return nil
}

func (syncer *xLogLockSyncer) waitForClose() {
	<-syncer.closeC
	if _, ok := syncer.outWriter.(*rotateLog); !ok {
		// The rotate log closes itself through its context.
		syncer.mu.Lock()
		defer syncer.mu.Unlock()
		_ = syncer.outWriter.Close()
	}
}

func XLogLockSyncer(writer io.WriteCloser) zapcore.WriteSyncer {
	syncer := &xLogLockSyncer{
		outWriter: writer,
		closeC:    make(chan struct{}),
	}
	go syncer.waitForClose()
	return syncer
}
