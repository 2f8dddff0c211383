package xlog

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap/zapcore"
)

var _ xLogCore = (*fileCore)(nil)

type fileCore struct {
	*commonCore
}

// FileCoreConfig drives the file-backed core: where the log lives,
// when it rolls, how aged backups are archived and whether writes go
// through the arena buffer.
type FileCoreConfig struct {
	FilePath                string `json:"filePath" yaml:"filePath"`
	Filename                string `json:"filename" yaml:"filename"`
	FileMaxSize             string `json:"fileMaxSize" yaml:"fileMaxSize"`
	FileMaxAge              string `json:"fileMaxAge" yaml:"fileMaxAge"`
	FileZipName             string `json:"fileZipName" yaml:"fileZipName"`
	FileBufferSize          string `json:"fileBufferSize" yaml:"fileBufferSize"`
	FileBufferFlushInterval int64  `json:"fileBufferFlushInterval" yaml:"fileBufferFlushInterval"` // Milliseconds
	FileMaxBackups          int    `json:"fileMaxBackups" yaml:"fileMaxBackups"`
	FileCompressBatch       int    `json:"fileCompressBatch" yaml:"fileCompressBatch"`
	FileCompressible        bool   `json:"fileCompressible" yaml:"fileCompressible"`
	FileRotateEnable        bool   `json:"fileRotateEnable" yaml:"fileRotateEnable"`
}

func newFileCore(cfg *FileCoreConfig) XLogCoreConstructor {
	return func(
		ctx context.Context,
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) xLogCore {
		if ctx == nil {
			return nil
		}
		if cfg == nil {
			cfg = &FileCoreConfig{
				Filename: filepath.Base(os.Args[0]) + "_xlog.log",
				FilePath: os.TempDir(),
			}
		}

		var (
			err           error
			bufferEnabled = false
			bufSize       uint64
			bufInterval   int64
			fileWriter    io.WriteCloser
			ws            zapcore.WriteSyncer
		)
		if cfg.FileBufferSize != "" && cfg.FileBufferFlushInterval > 0 {
			if bufSize, err = parseBufferSize(cfg.FileBufferSize); err == nil {
				if bufInterval = cfg.FileBufferFlushInterval; bufInterval < 200 {
					bufInterval = 200
				} else if bufInterval > _maxBufferFlushMs {
					bufInterval = _maxBufferFlushMs
				}
				bufferEnabled = true
			}
		}
		if cfg.FileRotateEnable {
			fileWriter = RotateLog(ctx, cfg)
			if fileWriter == nil {
				panic("[XLogger] unable to initialize the rotate log file")
			}
		} else {
			fileWriter = SingleLog(ctx, cfg)
		}
		if bufferEnabled {
			syncer := &XLogBufferSyncer{
				outWriter: fileWriter,
				arena: &xLogArena{
					size: bufSize,
				},
				flushInterval: time.Duration(bufInterval) * time.Millisecond,
			}
			syncer.initialize()
			ws = syncer
		} else {
			ws = zapcore.Lock(zapcore.AddSync(fileWriter))
		}

		cc := &fileCore{
			commonCore: &commonCore{
				ctx:        ctx,
				lvlEnabler: lvlEnabler,
				lvlEnc:     lvlEnc,
				tsEnc:      tsEnc,
				ws:         ws,
				enc:        getEncoderByType(encoder),
			},
		}
		config := zapcore.EncoderConfig{
			MessageKey:    "msg",
			LevelKey:      "lvl",
			EncodeLevel:   cc.lvlEnc,
			TimeKey:       "ts",
			EncodeTime:    cc.tsEnc,
			CallerKey:     "callAt",
			EncodeCaller:  zapcore.ShortCallerEncoder,
			FunctionKey:   "fn",
			NameKey:       coreKeyIgnored,
			EncodeName:    zapcore.FullNameEncoder,
			StacktraceKey: coreKeyIgnored,
		}
		cc.core = zapcore.NewCore(cc.enc(config), cc.ws, cc.lvlEnabler)
		runtime.SetFinalizer(cc, func(cc *fileCore) {
			_ = fileWriter.Close()
		})
		return cc
	}
}

const (
	_maxBufferSize    = 10 * MB
	_maxBufferFlushMs = 3000
)

func parseBufferSize(size string) (uint64, error) {
	_size, err := parseFileSize(size)
	if err != nil {
		return 0, err
	}
	if _size > uint64(_maxBufferSize) {
		return 0, errors.New("file buffer size too large")
	}
	return _size, nil
}
