package xlog

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/safearchive/zip"
	"github.com/google/safeopen"
	"go.uber.org/multierr"

	"github.com/benz9527/xmetrics/lib/infra"
)

type fileSizeUnit uint64

const (
	B fileSizeUnit = 1 << (10 * iota)
	KB
	MB
	_maxSize = 1024 * MB
)

type fileAgeUnit int64

const (
	backupDateTimeFormat             = "2006_01_02T15_04_05.999999999_Z07_00"
	Second               fileAgeUnit = fileAgeUnit(time.Duration(1 * time.Second))
	Minute               fileAgeUnit = fileAgeUnit(time.Duration(1 * time.Minute))
	Hour                 fileAgeUnit = fileAgeUnit(time.Duration(1 * time.Hour))
	Day                  fileAgeUnit = fileAgeUnit(time.Duration(1 * time.Hour * 24))
	_maxFileAge                      = 2 * 7 * Day
)

var (
	fileSizeRegexp = regexp.MustCompile(`^(\d+)(([kK]|[mM])?[bB])$`)
	fileAgeRegexp  = regexp.MustCompile(`^(\d+)(s|[sS]ec|[mM]in|[hH](our[s]?)?|[dD](ay[s]?)?)$`)

	fileSizeUnits = map[string]fileSizeUnit{
		"B": B, "KB": KB, "MB": MB,
	}
	fileAgeUnits = map[string]fileAgeUnit{
		"S": Second, "SEC": Second,
		"MIN": Minute,
		"H":   Hour, "HOUR": Hour, "HOURS": Hour,
		"D": Day, "DAY": Day, "DAYS": Day,
	}
)

func parseFileSize(size string) (uint64, error) {
	groups := fileSizeRegexp.FindStringSubmatch(size)
	if len(groups) < 3 || groups[0] != size {
		return 0, infra.NewErrorStack("invalid file size unit")
	}
	unit := fileSizeUnits[strings.ToUpper(groups[2])]
	n, _ := strconv.ParseUint(groups[1], 10, 64)
	return n * uint64(unit), nil
}

func parseFileAge(age string) (time.Duration, error) {
	groups := fileAgeRegexp.FindStringSubmatch(age)
	if len(groups) < 3 || groups[0] != age {
		return 0, infra.NewErrorStack("invalid file age unit")
	}
	unit := fileAgeUnits[strings.ToUpper(groups[2])]
	n, _ := strconv.ParseInt(groups[1], 10, 64)
	dur := time.Duration(n) * time.Duration(unit)
	if dur >= time.Duration(_maxFileAge) {
		dur = time.Duration(_maxFileAge)
	}
	return dur, nil
}

var _ io.WriteCloser = (*rotateLog)(nil)

// rotateLog is a size-rolling log file. Once the active file outgrows
// maxSize it is renamed to a timestamped backup and a fresh file takes
// its place. A directory watcher notices each backup's creation and
// sweeps the backlog: backups past the age limit or over the backup
// quota are either zipped into one archive or deleted.
//
// The metrics library keeps its audit trail (registration mismatches,
// exporter failures) on one of these via the file core, so the sweep
// has to stay out of the write path; only the rename itself is
// synchronous with a Write.
type rotateLog struct {
	ctx           context.Context
	dir           string
	name          string
	maxSizeSpec   string
	maxAgeSpec    string
	zipName       string
	maxSize       uint64
	written       uint64
	mkdirOnce     sync.Once
	active        atomic.Pointer[os.File]
	watcher       atomic.Pointer[fsnotify.Watcher]
	maxBackups    int
	compressBatch int
	compress      bool
}

func (log *rotateLog) Write(p []byte) (n int, err error) {
	select {
	case <-log.ctx.Done():
		return 0, io.EOF
	default:
	}

	if log.active.Load() == nil {
		if err = log.openOrCreate(); err != nil {
			return 0, err
		}
	}
	n, err = log.active.Load().Write(p)
	if err != nil {
		return
	}
	log.written += uint64(n)
	if log.written > log.maxSize {
		// Roll after the write so a single oversized record never
		// splits across two files.
		err = log.backupThenCreate()
	}
	return
}

func (log *rotateLog) Close() error {
	f := log.active.Load()
	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.active.Store(nil)
	return nil
}

func (log *rotateLog) initialize() error {
	if log.watcher.Load() != nil {
		return nil
	}

	size, err := parseFileSize(log.maxSizeSpec)
	if err != nil {
		reportRotateError(err)
		return err
	}
	log.maxSize = size

	maxAge, err := parseFileAge(log.maxAgeSpec)
	if err != nil {
		reportRotateError(err)
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		reportRotateError(infra.WrapErrorStackWithMessage(err, "failed to create file watcher"))
		return err
	}
	if err = watcher.Add(log.dir); err != nil {
		reportRotateError(infra.WrapErrorStackWithMessage(err, "failed to add log directory to watcher"))
		_ = watcher.Close()
		return err
	}
	log.watcher.Store(watcher)

	go log.watchThenSweep(maxAge)
	return nil
}

func (log *rotateLog) mkdir() error {
	var err error = nil
	log.mkdirOnce.Do(func() {
		if log.dir == "" {
			log.dir = os.TempDir()
		}
		if log.dir == os.TempDir() {
			return
		}
		err = os.MkdirAll(log.dir, 0o644)
	})
	return infra.WrapErrorStack(err)
}

// backup renames the active file to <name>_<utc-timestamp><ext>.
// The timestamp is what the sweep later parses to age the backup.
func (log *rotateLog) backup() error {
	ext := filepath.Ext(log.name)
	prefix := strings.TrimSuffix(log.name, ext)
	ts := time.Now().UTC().Format(backupDateTimeFormat)
	pathToBackup := filepath.Join(log.dir, prefix+"_"+ts+ext)
	if err := log.active.Load().Close(); err != nil {
		return infra.WrapErrorStackWithMessage(err, "failed to backup current log: "+filepath.Join(log.dir, log.name))
	}
	return os.Rename(filepath.Join(log.dir, log.name), pathToBackup)
}

func (log *rotateLog) create() error {
	if err := log.mkdir(); err != nil {
		return err
	}

	f, err := safeopen.OpenFileBeneath(log.dir, log.name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "unable to create new log file: "+filepath.Join(log.dir, log.name))
	}
	log.active.Store(f)
	log.written = 0
	return nil
}

func (log *rotateLog) backupThenCreate() error {
	if err := log.backup(); err != nil {
		return err
	}
	return log.create()
}

func (log *rotateLog) openOrCreate() error {
	if err := log.mkdir(); err != nil {
		return err
	}

	pathToLog := filepath.Join(log.dir, log.name)
	info, err := os.Stat(pathToLog)
	if os.IsNotExist(err) {
		var merr error
		merr = multierr.Append(merr, err)
		if err = log.create(); err != nil {
			return multierr.Append(merr, err)
		}
		return log.initialize()
	} else if err != nil {
		log.active.Store(nil)
		return infra.WrapErrorStack(err)
	}

	if info.IsDir() {
		log.active.Store(nil)
		return infra.NewErrorStack("log file <" + pathToLog + "> is a dir")
	}

	var f *os.File
	if f, err = safeopen.OpenFileBeneath(log.dir, log.name, os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
		var merr error = infra.WrapErrorStackWithMessage(err, "unable to access log file: "+pathToLog)
		if err = log.backupThenCreate(); err != nil {
			return infra.WrapErrorStackWithMessage(multierr.Combine(merr, err), "failed to backup then open new log file: "+pathToLog)
		}
	}
	log.active.Store(f)
	log.written = uint64(info.Size())
	return log.initialize()
}

// watchThenSweep reacts to every file created in the log directory
// (each backup rename raises one event) by sweeping the backlog.
// Endless until the rotate log's context is cancelled.
func (log *rotateLog) watchThenSweep(maxAge time.Duration) {
	for {
		select {
		case <-log.ctx.Done():
			_ = log.Close()
			reportRotateError(log.watcher.Load().Close())
			log.watcher.Store(nil)
			return
		case event, ok := <-log.watcher.Load().Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				log.sweep(maxAge)
			}
		case err, ok := <-log.watcher.Load().Errors:
			if !ok {
				return
			}
			reportRotateError(err)
		}
	}
}

// sweep partitions the backups into expired and kept, tops the expired
// set up with any backups over the quota, then archives or deletes
// them.
func (log *rotateLog) sweep(maxAge time.Duration) {
	backups, err := log.listBackups()
	if err != nil || len(backups) <= 0 {
		reportRotateError(err)
		return
	}
	expired, kept := log.splitByAge(time.Now().UTC(), maxAge, backups)
	expired = append(expired, log.overQuota(kept)...)
	if log.compress {
		if len(expired) < log.compressBatch {
			return
		}
		if err := log.archive(expired); err != nil {
			reportRotateError(err)
		}
		return
	}
	for _, info := range expired {
		_ = os.Remove(filepath.Join(log.dir, filepath.Base(info.Name())))
	}
}

// listBackups returns every backup of this log in the directory; the
// active file is excluded.
func (log *rotateLog) listBackups() ([]fs.FileInfo, error) {
	ext := filepath.Ext(log.name)
	prefix := log.name[:len(log.name)-len(ext)]
	entries, err := os.ReadDir(log.dir)
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	backups := make([]fs.FileInfo, 0, 16)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		if !strings.HasPrefix(filename, prefix) || !strings.HasSuffix(filename, ext) || filename == log.name {
			continue
		}
		if info, err := entry.Info(); err == nil && info != nil {
			backups = append(backups, info)
		}
	}
	return backups, nil
}

// splitByAge buckets backups by their encoded timestamp. Files whose
// name does not parse are left alone entirely.
func (log *rotateLog) splitByAge(now time.Time, maxAge time.Duration, backups []fs.FileInfo) (expired, kept []fs.FileInfo) {
	ext := filepath.Ext(log.name)
	prefix := log.name[:len(log.name)-len(ext)]
	expired = make([]fs.FileInfo, 0, 16)
	kept = make([]fs.FileInfo, 0, 16)
	for _, info := range backups {
		filename := filepath.Base(info.Name())
		ts := strings.TrimSuffix(strings.TrimPrefix(filename, prefix+"_"), ext)
		backedUpAt, err := time.Parse(backupDateTimeFormat, ts)
		if err != nil {
			continue
		}
		if now.Sub(backedUpAt) > maxAge {
			expired = append(expired, info)
		} else {
			kept = append(kept, info)
		}
	}
	return expired, kept
}

// overQuota returns the oldest kept backups beyond maxBackups.
func (log *rotateLog) overQuota(kept []fs.FileInfo) []fs.FileInfo {
	redundant := len(kept) - log.maxBackups
	if redundant <= 0 {
		return nil
	}
	sort.Slice(kept, func(i, j int) bool {
		// A manually touched backup sorts out of order; acceptable.
		return kept[i].ModTime().Before(kept[j].ModTime())
	})
	return kept[:redundant]
}

// archive folds the expired backups into the single zip next to the
// log, carrying over the entries of a previous archive, then removes
// the originals.
func (log *rotateLog) archive(expired []fs.FileInfo) error {
	var (
		zipFile *os.File
		prevZip *zip.ReadCloser
		err     error
	)
	pathToZip := filepath.Join(log.dir, log.zipName)
	if info, statErr := os.Stat(pathToZip); statErr == nil && !info.IsDir() {
		// Merge through a temp file; the old archive stays readable
		// until the new one is complete.
		if zipFile, err = safeopen.OpenFileBeneath(log.dir, "xlog-tmp.zip", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644); err != nil {
			return err
		}
		if prevZip, err = zip.OpenReader(pathToZip); err != nil {
			return err
		}
	} else if zipFile, err = os.Create(pathToZip); err != nil {
		return err
	}

	zipWriter := zip.NewWriter(zipFile)
	for _, info := range expired {
		filename := filepath.Base(info.Name())
		file, err := safeopen.OpenBeneath(log.dir, filename)
		if err != nil {
			continue
		}
		if entry, err := zipWriter.Create(filename); err == nil {
			if _, err = io.Copy(entry, file); err == nil {
				_ = file.Close()
				file = nil
				if err = os.Remove(filepath.Join(log.dir, filename)); err != nil {
					reportRotateError(err)
				}
			}
		}
		if file != nil {
			_ = file.Close()
		}
	}
	if prevZip != nil {
		prevZip.SetSecurityMode(prevZip.GetSecurityMode() | zip.MaximumSecurityMode)
		for _, f := range prevZip.File {
			oldEntry, err := f.Open()
			if err != nil || f.Mode().IsDir() {
				if oldEntry != nil {
					_ = oldEntry.Close()
				}
				continue
			}
			header := &zip.FileHeader{
				Name:   f.Name,
				Method: f.Method,
			}
			if entry, err := zipWriter.CreateHeader(header); err == nil {
				_, _ = io.Copy(entry, oldEntry)
			}
			_ = oldEntry.Close()
		}
		if err := zipWriter.Flush(); err != nil {
			return err
		}
	}
	_ = zipWriter.Close()
	_ = zipFile.Close()
	if prevZip != nil {
		_ = prevZip.Close()
		if err = os.Remove(pathToZip); err != nil {
			reportRotateError(err)
		}
		if err = os.Rename(filepath.Join(log.dir, "xlog-tmp.zip"), pathToZip); err != nil {
			reportRotateError(err)
		}
	}
	return nil
}

func reportRotateError(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[XLogger] rotate log occurs error: %s\n", err)
	}
}

func RotateLog(ctx context.Context, cfg *FileCoreConfig) io.WriteCloser {
	if cfg == nil || ctx == nil {
		return nil
	}
	w := &rotateLog{
		ctx:           ctx,
		dir:           cfg.FilePath,
		name:          cfg.Filename,
		maxSizeSpec:   cfg.FileMaxSize,
		maxAgeSpec:    cfg.FileMaxAge,
		zipName:       cfg.FileZipName,
		maxBackups:    cfg.FileMaxBackups,
		compressBatch: cfg.FileCompressBatch,
		compress:      cfg.FileCompressible,
	}
	if err := w.mkdir(); err != nil {
		return nil
	}
	if err := w.initialize(); err != nil {
		return nil
	}
	return w
}
