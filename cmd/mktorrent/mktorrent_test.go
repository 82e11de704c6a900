// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	anametainfo "github.com/anacrolix/torrent/metainfo"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmatsuo/metafile/config"
	"github.com/bmatsuo/metafile/metainfo"
	"github.com/bmatsuo/metafile/torrenttest"
)

const announce = "http://tracker.example/announce"

func sampleDir(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	dir := filepath.Join(t.TempDir(), "album")
	torrenttest.WriteTree(t, dir, map[string][]byte{
		"01.flac":     torrenttest.Pattern(40000, 1),
		"02.flac":     torrenttest.Pattern(25000, 2),
		"cover/a.jpg": torrenttest.Pattern(999, 3),
		".DS_Store":   []byte("junk"),
	})
	return dir
}

// records decodes the JSON log lines written by the command.
func records(t *testing.T, log *bytes.Buffer) []map[string]any {
	t.Helper()
	var recs []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(log.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), "%s", sc.Text())
		recs = append(recs, rec)
	}
	return recs
}

func TestRun(t *testing.T) {
	dir := sampleDir(t)
	var out, log bytes.Buffer
	err := run(context.Background(), []string{"-p", "15", "--comment", "hi", "--safe", "yes", "--url", "http://a/", "--url", "http://b/", announce, dir}, &out, &log)
	require.NoError(t, err, log.String())

	mi, err := anametainfo.LoadFromFile(dir + ".torrent")
	require.NoError(t, err)
	assert.Equal(t, announce, mi.Announce)
	assert.Equal(t, "hi", mi.Comment)
	assert.Equal(t, "mktorrent", mi.CreatedBy)
	assert.Equal(t, []string{"http://a/", "http://b/"}, []string(mi.UrlList))
	assert.InDelta(t, time.Now().Unix(), mi.CreationDate, 60)

	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Equal(t, "album", info.Name)
	assert.Equal(t, int64(1<<15), info.PieceLength)
	require.Len(t, info.Files, 3)
	assert.Equal(t, []string{"cover", "a.jpg"}, info.Files[2].Path)

	recs := records(t, &log)
	require.NotEmpty(t, recs)
	last := recs[len(recs)-1]
	assert.Equal(t, "wrote descriptor", last["msg"])
	assert.Equal(t, mi.HashInfoBytes().HexString(), last["info_hash"])
	assert.True(t, strings.HasPrefix(last["digest"].(string), "sha256:"))
	assert.Equal(t, float64(3), last["pieces"])

	summary := out.String()
	assert.True(t, strings.HasPrefix(summary, dir+".torrent\n"), summary)
	assert.Contains(t, summary, "info hash  "+mi.HashInfoBytes().HexString())
	assert.Contains(t, summary, "digest     "+last["digest"].(string))
	assert.Contains(t, summary, "in 3 pieces of 32 KiB")

	p, err := os.ReadFile(dir + ".torrent")
	require.NoError(t, err)
	assert.Contains(t, string(p), "4:safe3:yes")
}

func TestRun_singleFile(t *testing.T) {
	dir := sampleDir(t)
	src := filepath.Join(dir, "01.flac")
	out := filepath.Join(t.TempDir(), "out.torrent")
	var log bytes.Buffer
	err := run(context.Background(), []string{"-q", "-o", out, "--name", "track", "--md5sum", "--private", announce, src}, io.Discard, &log)
	require.NoError(t, err, log.String())
	assert.Empty(t, log.String(), "quiet")

	mi, err := anametainfo.LoadFromFile(out)
	require.NoError(t, err)
	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Equal(t, "track", info.Name)
	assert.Equal(t, int64(40000), info.Length)
	assert.Nil(t, info.Files)
	assert.True(t, info.Private != nil && *info.Private)
	_, err = os.Stat(src + ".torrent")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRun_existingOutput(t *testing.T) {
	dir := sampleDir(t)
	out := dir + ".torrent"
	require.NoError(t, os.WriteFile(out, []byte("keep"), 0o644))

	err := run(context.Background(), []string{announce, dir}, io.Discard, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
	p, _ := os.ReadFile(out)
	assert.Equal(t, "keep", string(p))

	require.NoError(t, run(context.Background(), []string{"-f", announce, dir}, io.Discard, &bytes.Buffer{}))
	_, err = anametainfo.LoadFromFile(out)
	assert.NoError(t, err)
}

func TestRun_emptyDirectory(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	dir := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.Mkdir(dir, 0o755))

	err := run(context.Background(), []string{announce, dir}, io.Discard, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")
	_, err = os.Stat(dir + ".torrent")
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing written")

	require.NoError(t, run(context.Background(), []string{"--allow-empty", announce, dir}, io.Discard, &bytes.Buffer{}))
	mi, err := anametainfo.LoadFromFile(dir + ".torrent")
	require.NoError(t, err)
	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Empty(t, info.Files)
	assert.Zero(t, info.NumPieces())
}

func TestRun_config(t *testing.T) {
	dir := sampleDir(t)
	cfgPath := filepath.Join(t.TempDir(), "mktorrent.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
announce: udp://tracker.example:6969
comment: from file
created_by: nightly
piece_exponent: 14
safe: from file
ignore: [cover]
`), 0o644))
	t.Setenv(config.EnvVar, cfgPath)

	err := run(context.Background(), []string{"--comment", "from flag", dir}, io.Discard, &bytes.Buffer{})
	require.NoError(t, err)

	mi, err := anametainfo.LoadFromFile(dir + ".torrent")
	require.NoError(t, err)
	assert.Equal(t, "udp://tracker.example:6969", mi.Announce)
	assert.Equal(t, "from flag", mi.Comment)
	assert.Equal(t, "nightly", mi.CreatedBy)
	info, err := mi.UnmarshalInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<14), info.PieceLength)
	assert.Len(t, info.Files, 2, "cover ignored")

	p, err := os.ReadFile(dir + ".torrent")
	require.NoError(t, err)
	assert.Contains(t, string(p), "4:safe9:from file")
}

func TestRun_errors(t *testing.T) {
	dir := sampleDir(t)
	ctx := context.Background()

	var uerr *usageError
	assert.ErrorAs(t, run(ctx, nil, io.Discard, &bytes.Buffer{}), &uerr)
	assert.ErrorAs(t, run(ctx, []string{dir}, io.Discard, &bytes.Buffer{}), &uerr, "no announce")
	assert.ErrorAs(t, run(ctx, []string{"--no-such-flag", announce, dir}, io.Discard, &bytes.Buffer{}), &uerr)
	assert.ErrorIs(t, run(ctx, []string{"--help"}, io.Discard, &bytes.Buffer{}), pflag.ErrHelp)

	assert.ErrorIs(t, run(ctx, []string{"-p", "0", announce, dir}, io.Discard, &bytes.Buffer{}), metainfo.ErrConfig)
	assert.ErrorIs(t, run(ctx, []string{"--encoding", "nope", announce, dir}, io.Discard, &bytes.Buffer{}), metainfo.ErrConfig)
	assert.ErrorIs(t, run(ctx, []string{"   ", dir}, io.Discard, &bytes.Buffer{}), metainfo.ErrConfig)
	assert.ErrorIs(t, run(ctx, []string{announce, filepath.Join(dir, "missing")}, io.Discard, &bytes.Buffer{}), metainfo.ErrIO)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, run(cancelled, []string{announce, dir}, io.Discard, &bytes.Buffer{}), context.Canceled)
	_, err := os.Stat(dir + ".torrent")
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing written for a failed build")
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "album.torrent", defaultOutput("album"))
	assert.Equal(t, "album.torrent", defaultOutput("album/"))
	assert.Equal(t, filepath.Join("music", "album.torrent"), defaultOutput(filepath.Join("music", "album")))
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := newProgress(&out)
	now := time.Unix(0, 0)
	p.now = func() time.Time { return now }

	p.finish()
	assert.Empty(t, out.String(), "nothing drawn, nothing to finish")

	now = now.Add(time.Second)
	p.add(1024)
	p.add(1024) // throttled
	assert.Equal(t, 1, strings.Count(out.String(), "\r"))
	assert.Contains(t, out.String(), "1.0 KiB")

	p.finish()
	assert.Contains(t, out.String(), "2.0 KiB")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, "INFO", logLevel(false, false).String())
	assert.Equal(t, "WARN", logLevel(true, false).String())
	assert.Equal(t, "DEBUG", logLevel(true, true).String())
}
