package xlog

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFileSizeUnit(t *testing.T) {
	testcases := []struct {
		size        string
		expected    uint64
		expectedErr bool
	}{
		{"abcMB", 0, true},
		{"_GB", 0, true},
		{"TB", 0, true},
		{"Y", 0, true},
		{"100B", 100 * uint64(B), false},
		{"100KB", 100 * uint64(KB), false},
		{"100MB", 100 * uint64(MB), false},
		{"100b", 100 * uint64(B), false},
		{"100kb", 100 * uint64(KB), false},
		{"100mb", 100 * uint64(MB), false},
		{"100kB", 100 * uint64(KB), false},
		{"100Mb", 100 * uint64(MB), false},
		{"100Kb", 100 * uint64(KB), false},
		{"100mB", 100 * uint64(MB), false},
	}
	for _, tc := range testcases {
		actual, err := parseFileSize(tc.size)
		if tc.expectedErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.expected, actual)
	}
}

func TestParseFileAgeUnit(t *testing.T) {
	testcases := []struct {
		age         string
		expected    time.Duration
		expectedErr bool
	}{
		{"1s", 1 * time.Second, false},
		{"1sec", 1 * time.Second, false},
		{"1S", 0, true},
		{"_S", 0, true},
		{"_Sec", 0, true},
		{"1m", 0, true},
		{"1min", 1 * time.Minute, false},
		{"1H", 1 * time.Hour, false},
		{"1hour", 1 * time.Hour, false},
		{"2hours", 2 * time.Hour, false},
		{"2Hours", 2 * time.Hour, false},
		{"1D", 1 * time.Duration(Day), false},
		{"1d", 1 * time.Duration(Day), false},
		{"1day", 1 * time.Duration(Day), false},
		{"2days", 2 * time.Duration(Day), false},
		{"2Days", 2 * time.Duration(Day), false},
	}
	for _, tc := range testcases {
		actual, err := parseFileAge(tc.age)
		if tc.expectedErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.expected, actual)
	}
}

func testRotateLogWriteRunCore(t *testing.T, log io.WriteCloser) {
	for i := 0; i < 100; i++ {
		data := []byte(strconv.Itoa(i) + " " + time.Now().UTC().Format(backupDateTimeFormat) + " xlog rotate log write test!\n")
		_, err := log.Write(data)
		require.NoError(t, err)
	}
	time.Sleep(1 * time.Second)
	err := log.Close()
	require.NoError(t, err)
}

func TestRotateLog_Write_Compress(t *testing.T) {
	cfg := &FileCoreConfig{
		FileMaxSize:       "1KB",
		Filename:          filepath.Base(os.Args[0]) + "_rxlog.log",
		FileCompressible:  true,
		FileMaxBackups:    4,
		FileMaxAge:        "3day",
		FileCompressBatch: 2,
		FileZipName:       filepath.Base(os.Args[0]) + "_rxlogs.zip",
		FilePath:          os.TempDir(),
	}
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	for i := 0; i < 2; i++ {
		log := RotateLog(ctx, cfg)
		require.NotNil(t, log)
		testRotateLogWriteRunCore(t, log)
	}

	reader, err := zip.OpenReader(filepath.Join(cfg.FilePath, cfg.FileZipName))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(reader.File), cfg.FileCompressBatch)
	_ = reader.Close()
	removed := testCleanLogFiles(t, os.TempDir(), filepath.Base(os.Args[0])+"_rxlog", ".log")
	require.GreaterOrEqual(t, removed, 1)
	removed = testCleanLogFiles(t, os.TempDir(), filepath.Base(os.Args[0])+"_rxlogs", ".zip")
	require.Equal(t, 1, removed)
}

func TestRotateLog_Write_Delete(t *testing.T) {
	cfg := &FileCoreConfig{
		FileMaxSize:      "1KB",
		Filename:         filepath.Base(os.Args[0]) + "_dxlog.log",
		FileCompressible: false,
		FileMaxBackups:   4,
		FileMaxAge:       "3day",
		FilePath:         os.TempDir(),
	}
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	for i := 0; i < 2; i++ {
		log := RotateLog(ctx, cfg)
		require.NotNil(t, log)
		testRotateLogWriteRunCore(t, log)
	}

	removed := testCleanLogFiles(t, os.TempDir(), filepath.Base(os.Args[0])+"_dxlog", ".log")
	require.GreaterOrEqual(t, removed, 1)
	require.LessOrEqual(t, removed, cfg.FileMaxBackups+1)
}

func testCleanLogFiles(t *testing.T, path, namePrefix, nameSuffix string) int {
	entries, err := os.ReadDir(path)
	logInfos := make([]os.FileInfo, 0, 16)
	if err == nil && len(entries) > 0 {
		for _, entry := range entries {
			if !entry.IsDir() {
				filename := entry.Name()
				if strings.HasPrefix(filename, namePrefix) && strings.HasSuffix(filename, nameSuffix) {
					if info, err := entry.Info(); err == nil && info != nil {
						logInfos = append(logInfos, info)
					}
				}
			}
		}
	}
	for _, logInfo := range logInfos {
		err = os.Remove(filepath.Join(path, logInfo.Name()))
		require.NoError(t, err)
	}
	return len(logInfos)
}
