package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/config"
)

const detailPage = `<html><body>
<div id="u19"><h2><span class="uif-headerText-span">CSC148H1S: Introduction</span></h2></div>
<div id="u23"><span id="u23">Faculty of Arts and Science</span></div>
<div id="u32"><span id="u32">Abstract data types.</span></div>
<div id="u41"><span id="u41">Computer Science</span></div>
<div id="u86"><span id="u86">100/A-level</span></div>
<div id="u149"><span id="u149">St. George</span></div>
<div id="u158"><span id="u158">2016 Winter</span></div>
</body></html>`

func fakeCatalog(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/courseSearch/course/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("queryText") != "csc" {
			_, _ = w.Write([]byte(`{"aaData":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"aaData":[["<img id=\"offImgCSC148H1S20169\">","CSC148H1"]]}`))
	})
	mux.HandleFunc("/courseSearch/coursedetails/CSC148H1S20169", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(detailPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func quietRuntime(t *testing.T) {
	t.Helper()
	prevLogger, prevReg := newLogger, metricsRegisterer
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	metricsRegisterer = prometheus.NewRegistry()
	t.Cleanup(func() {
		newLogger, metricsRegisterer = prevLogger, prevReg
	})
}

func TestCrawlCommandWritesRecords(t *testing.T) {
	quietRuntime(t)
	srv := fakeCatalog(t)
	out := filepath.Join(t.TempDir(), "records")
	cfgPath := writeConfig(t, fmt.Sprintf(`
crawler:
  host: %s
  concurrency: 2
http:
  max_attempts: 2
  backoff_initial_ms: 0
  backoff_max_ms: 0
`, srv.URL))

	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stdout)
	root.SetArgs([]string{"crawl", "--config", cfgPath, "--query", "csc", "--out", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(filepath.Join(out, "CSC148H1S20169.json"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), `{"id":"CSC148H1S20169","code":"CSC148H1S","name":"Introduction"`), string(data))
	require.Contains(t, stdout.String(), "100.00%\r")
}

func TestCrawlCommandRejectsInvalidFlags(t *testing.T) {
	quietRuntime(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"crawl", "--concurrency=-1"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "crawler.concurrency must be > 0")
}

func TestCrawlOptionsApplyOnlyChangedFlags(t *testing.T) {
	t.Parallel()

	opts := &crawlOptions{}
	cmd := &cobra.Command{Use: "crawl"}
	cmd.Flags().StringVar(&opts.query, "query", "", "")
	cmd.Flags().StringVar(&opts.requirements, "requirements", "", "")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "")
	cmd.Flags().StringVar(&opts.out, "out", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--requirements", "breadth=5"}))

	cfg := config.Config{
		Crawler: config.CrawlerConfig{Host: config.DefaultHost, Concurrency: 8, Query: "mat"},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 30},
		Storage: config.StorageConfig{Backend: config.BackendMemory},
	}
	require.NoError(t, opts.apply(cmd, &cfg))
	require.Equal(t, "mat", cfg.Crawler.Query)
	require.Equal(t, "breadth=5", cfg.Crawler.Requirements)
	require.Equal(t, 8, cfg.Crawler.Concurrency)
	require.Equal(t, config.BackendMemory, cfg.Storage.Backend)
}

func TestRuntimeFromMissing(t *testing.T) {
	t.Parallel()

	_, err := runtimeFrom(context.Background())
	require.Error(t, err)
}
