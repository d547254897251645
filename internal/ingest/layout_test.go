package ingest

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry/telemetrytest"
)

func newLayout(t *testing.T) *Layout {
	t.Helper()
	l := NewLayout(afero.NewMemMapFs(), "/srv", zap.NewNop())
	require.NoError(t, l.Setup())
	return l
}

func logBody() []byte {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []byte(telemetrytest.LogFile(start, telemetrytest.Flags(0, 1, 0)))
}

func TestSetupCreatesDirectories(t *testing.T) {
	l := newLayout(t)
	for _, dir := range []string{"/srv/data", "/srv/graphs", "/srv/results"} {
		ok, err := afero.DirExists(l.Fs, dir)
		require.NoError(t, err)
		require.True(t, ok, dir)
	}
}

func TestSetupFailsOnReadOnlyFs(t *testing.T) {
	l := NewLayout(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/srv", zap.NewNop())
	require.ErrorIs(t, l.Setup(), ErrSetup)
}

func TestStoreUploadLog(t *testing.T) {
	l := newLayout(t)

	stored, rejected := l.StoreUpload("SN1_2024_05_01_1200.log", logBody())
	require.Empty(t, rejected)
	require.Len(t, stored, 1)
	require.Equal(t, "SN1", stored[0].SN)
	require.False(t, stored[0].Duplicate)
	require.Equal(t, "/srv/data/SN1/log_files/SN1_2024_05_01_1200.log", stored[0].Path)

	again, _ := l.StoreUpload("SN1_2024_05_01_1200.log", logBody())
	require.True(t, again[0].Duplicate)
}

func TestStoreUploadRejects(t *testing.T) {
	l := newLayout(t)

	_, rejected := l.StoreUpload("notes.txt", []byte("hello"))
	require.Len(t, rejected, 1)
	require.ErrorIs(t, rejected[0].Err, telemetry.ErrUnsupportedInput)

	_, rejected = l.StoreUpload("badname.log", logBody())
	require.ErrorIs(t, rejected[0].Err, telemetry.ErrBadFileName)

	_, rejected = l.StoreUpload("broken.zip", []byte("not a zip"))
	require.ErrorIs(t, rejected[0].Err, ErrBadArchive)

	stored, rejected := l.StoreUpload(".._2024_05_01_1200.log", logBody())
	require.Empty(t, stored)
	require.ErrorIs(t, rejected[0].Err, telemetry.ErrBadSN)
	ok, err := afero.Exists(l.Fs, "/srv/log_files")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilesRejectsEscapingSN(t *testing.T) {
	l := newLayout(t)
	for _, sn := range []string{"..", "../results", ""} {
		_, err := l.Files(sn, time.Time{}, time.Time{})
		require.ErrorIs(t, err, ErrListFailed, sn)
		require.ErrorIs(t, err, telemetry.ErrBadSN, sn)
	}
}

func TestStoreUploadZip(t *testing.T) {
	l := newLayout(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"logs/SN1_2024_05_01_1200.log", "logs/SN2_2024_05_02_0800.log", "logs/readme.md"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(logBody())
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	stored, rejected := l.StoreUpload("batch.zip", buf.Bytes())
	require.Empty(t, rejected)
	require.Len(t, stored, 2)

	sns, err := l.SNs()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"SN1", "SN2"}, sns)
}

func TestFilesDateRange(t *testing.T) {
	l := newLayout(t)
	for _, name := range []string{
		"SN1_2024_05_01_1200.log",
		"SN1_2024_05_03_1200.log",
		"SN1_2024_05_07_1200.log",
	} {
		_, rejected := l.StoreUpload(name, logBody())
		require.Empty(t, rejected)
	}

	all, err := l.Files("SN1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	some, err := l.Files("SN1", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, []string{
		"/srv/data/SN1/log_files/SN1_2024_05_03_1200.log",
		"/srv/data/SN1/log_files/SN1_2024_05_07_1200.log",
	}, some)

	none, err := l.Files("SN404", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, none)
}
