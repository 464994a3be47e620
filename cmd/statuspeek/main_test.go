package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selimozcann/statuspeek/internal/model"
	"github.com/selimozcann/statuspeek/internal/output"
)

func parse(t *testing.T, args ...string) options {
	t.Helper()
	fs := flag.NewFlagSet("statuspeek", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts, err := parseFlags(fs, args)
	require.NoError(t, err)
	return opts
}

func redirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readRecords(t *testing.T, r io.Reader) []output.Record {
	t.Helper()
	var records []output.Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statuspeek.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolver:\n  max_hops: 3\n  budget: 5s\nrunner:\n  threads: 2\n"), 0o600))

	opts := parse(t, "-config", path, "-max-hops", "7", "-method", "GET", "-metrics-listen", "127.0.0.1:0")
	cfg, err := loadConfig(opts)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Resolver.MaxHops)
	assert.Equal(t, 5*time.Second, cfg.Resolver.Budget, "unset flag keeps the file value")
	assert.Equal(t, 2, cfg.Runner.Threads)
	assert.Equal(t, "get", cfg.HTTP.Method)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:0", cfg.Metrics.Listen)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	for _, args := range [][]string{
		{"-max-hops", "0"},
		{"-method", "post"},
		{"-t", "-1"},
		{"-retries", "-2"},
		{"-rl", "2000000000"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := loadConfig(parse(t, args...))
			assert.Error(t, err)
		})
	}
}

func TestRun_JSONLInInputOrder(t *testing.T) {
	srv := redirectServer(t)

	opts := parse(t, "-silent", "-t", "4", srv.URL+"/a", srv.URL+"/gone", "not a url")
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), opts, nil, &stdout, &stderr))

	records := readRecords(t, &stdout)
	require.Len(t, records, 3)

	assert.Equal(t, srv.URL+"/a", records[0].SourceURL)
	assert.Equal(t, srv.URL+"/b", records[0].TargetURL)
	require.Len(t, records[0].RedirectChain, 1)
	assert.Equal(t, http.StatusMovedPermanently, records[0].RedirectChain[0].Status)
	assert.True(t, records[0].IsSafe)

	require.NotNil(t, records[1].FinalStatus)
	assert.Equal(t, http.StatusNotFound, *records[1].FinalStatus)
	assert.False(t, records[1].IsSafe)

	require.NotNil(t, records[2].Error)
	assert.Equal(t, string(model.ErrInvalidURL), *records[2].Error)
	assert.Empty(t, stderr.String(), "silent run with default log level writes nothing to stderr")
}

func TestRun_OutputFileAndSummary(t *testing.T) {
	srv := redirectServer(t)
	outPath := filepath.Join(t.TempDir(), "out", "results.jsonl")

	opts := parse(t, "-silent", "-summary", "-o", outPath, "-u", srv.URL+"/a")
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), opts, nil, &stdout, &stderr))

	assert.Empty(t, stdout.String())
	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, readRecords(t, f), 1)
	assert.Contains(t, stderr.String(), "total=1 safe=1 redirected=1")
}

func TestRun_Pretty(t *testing.T) {
	srv := redirectServer(t)

	opts := parse(t, "-silent", "-pretty", srv.URL+"/a")
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, nil, &stdout, io.Discard))

	assert.Contains(t, stdout.String(), srv.URL+"/a")
	assert.Contains(t, stdout.String(), srv.URL+"/b")
}

func TestRun_NoTargets(t *testing.T) {
	opts := parse(t, "-silent")
	err := run(context.Background(), opts, strings.NewReader("\n# nothing\n"), io.Discard, io.Discard)
	assert.Error(t, err)
}

func TestReadTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("example.com\n\n# skip\n  https://example.org  \n"), 0o600))

	t.Run("args and file", func(t *testing.T) {
		opts := parse(t, "-u", "a.example", "-f", path, "b.example")
		got, err := readTargets(opts, strings.NewReader("ignored.example\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a.example", "b.example", "example.com", "https://example.org"}, got)
	})

	t.Run("stdin fallback", func(t *testing.T) {
		got, err := readTargets(parse(t), strings.NewReader("one.example\n\ntwo.example\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"one.example", "two.example"}, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readTargets(parse(t, "-f", filepath.Join(t.TempDir(), "nope.txt")), nil)
		assert.Error(t, err)
	})
}

func TestToHeader(t *testing.T) {
	hdr, err := toHeader(map[string]string{"X-Base": "1"}, stringList{"X-Extra: two", "X-Extra:three"})
	require.NoError(t, err)
	assert.Equal(t, "1", hdr.Get("X-Base"))
	assert.Equal(t, []string{"two", "three"}, hdr.Values("X-Extra"))

	_, err = toHeader(nil, stringList{"no-colon"})
	assert.Error(t, err)
	_, err = toHeader(nil, stringList{": value"})
	assert.Error(t, err)
}

func TestOrderedSink(t *testing.T) {
	var got []string
	sink := newOrderedSink(func(r model.CheckResult) error {
		got = append(got, r.SourceURL)
		return nil
	})

	sink.add(2, model.CheckResult{SourceURL: "c"})
	sink.add(1, model.CheckResult{SourceURL: "b"})
	assert.Empty(t, got)
	sink.add(0, model.CheckResult{SourceURL: "a"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
	sink.add(3, model.CheckResult{SourceURL: "d"})
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}
