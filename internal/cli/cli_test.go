// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/backend"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/chat"
)

// =============================================================================
// HELPERS
// =============================================================================

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{
		"PARLEY_API_KEY", "PARLEY_BASE_URL", "PARLEY_MODEL",
		"PARLEY_LOG_LEVEL", "PARLEY_SPEECH", "PARLEY_VOICE",
	} {
		t.Setenv(k, "")
	}
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)
	return home
}

// fakeService mimics the chat service endpoints.
type fakeService struct {
	mu       sync.Mutex
	chatFail bool
	uploads  []string
	queries  []map[string]any
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		fail := f.chatFail
		f.mu.Unlock()
		if fail {
			http.Error(w, `{"detail":"model overloaded"}`, http.StatusInternalServerError)
			return
		}
		for _, part := range []string{"Hello", ", world"} {
			io.WriteString(w, part)
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/api/upload_pdf", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.Close()
		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		f.mu.Unlock()
		io.WriteString(w, `{"session_id":"sess-42"}`)
	})
	mux.HandleFunc("/api/pdf_chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.queries = append(f.queries, body)
		f.mu.Unlock()
		io.WriteString(w, `{"answer":"From the document."}`)
	})
	return mux
}

func newService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writePDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n"), 0o600))
	return path
}

// =============================================================================
// ROOT
// =============================================================================

func TestVersion(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "parley "+Version)
	assert.Contains(t, out, "commit:")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "ask", "--bogus", "hi")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestModelFlagValidated(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "--model", "not-a-model", "config", "show")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	assert.Contains(t, err.Error(), "backend.model")
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	isolate(t)
	_, srv := newService(t)

	out, _, err := execute(t, "", "--base-url", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "[OK]")
	assert.Contains(t, out, srv.URL)
}

func TestHealth_Unreachable(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, _, err := execute(t, "", "--base-url", url, "health")
	require.Error(t, err)
	assert.Contains(t, out, "[FAIL]")
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAnswer(t *testing.T) {
	isolate(t)
	_, srv := newService(t)

	out, _, err := execute(t, "", "--base-url", srv.URL, "ask", "say", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world\n", out)
}

func TestAsk_ReadsQuestionFromStdin(t *testing.T) {
	isolate(t)
	_, srv := newService(t)

	out, _, err := execute(t, "what is this?\n", "--base-url", srv.URL, "ask", "--raw")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world\n", out)
}

func TestAsk_NeedsQuestion(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "  \n", "ask")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestAsk_GroundedInDocument(t *testing.T) {
	isolate(t)
	svc, srv := newService(t)
	pdf := writePDF(t, "report.pdf")

	out, errOut, err := execute(t, "", "--base-url", srv.URL, "ask", "--doc", pdf, "what", "changed?")
	require.NoError(t, err)
	assert.Equal(t, "From the document.\n", out)
	assert.Contains(t, errOut, "Indexed report.pdf")

	require.Equal(t, []string{"report.pdf"}, svc.uploads)
	require.Len(t, svc.queries, 1)
	assert.Equal(t, "sess-42", svc.queries[0]["session_id"])
	assert.Equal(t, "what changed?", svc.queries[0]["query"])
}

func TestAsk_RejectsNonPDF(t *testing.T) {
	isolate(t)
	svc, srv := newService(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	_, _, err := execute(t, "", "--base-url", srv.URL, "ask", "--doc", path, "hi")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Empty(t, svc.uploads)
}

func TestAsk_ServiceFailure(t *testing.T) {
	isolate(t)
	svc, srv := newService(t)
	svc.chatFail = true

	out, _, err := execute(t, "", "--base-url", srv.URL, "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), exchange.ApologyMessage)
	assert.Empty(t, out)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigPath(t *testing.T) {
	home := isolate(t)
	out, _, err := execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".parley", "config.toml"), strings.TrimSpace(out))

	out, _, err = execute(t, "", "--config", "/tmp/other.toml", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.toml", strings.TrimSpace(out))
}

func TestConfigShow_RedactsKey(t *testing.T) {
	isolate(t)
	t.Setenv("PARLEY_API_KEY", "sk-secret")

	out, _, err := execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "sk-secret")
}

func TestConfigInit(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	want := model.ListModels()[1].ID

	out, _, err := execute(t, "sk-test\nnope\n2\n", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, `unknown model "nope"`)
	assert.Contains(t, out, "Saved "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Backend.APIKey)
	assert.Equal(t, want, cfg.Backend.Model)
}

func TestConfigInit_KeepsCurrentValues(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Backend.APIKey = "sk-old"
	cfg.Backend.Model = "gpt-4o"
	require.NoError(t, config.Save(cfg, path))

	_, _, err := execute(t, "\n\n", "--config", path, "config", "init")
	require.NoError(t, err)

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-old", got.Backend.APIKey)
	assert.Equal(t, "gpt-4o", got.Backend.Model)
}

func TestConfigInit_InputEnds(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	_, _, err := execute(t, "", "--config", path, "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.NoFileExists(t, path)
}

// =============================================================================
// LINE-MODE CHAT
// =============================================================================

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.BaseURL = baseURL
	cfg.Log.Path = filepath.Join(t.TempDir(), "parley.log")
	app, err := newApp(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestChatSession(t *testing.T) {
	isolate(t)
	svc, srv := newService(t)
	app := newTestApp(t, srv.URL)
	var out bytes.Buffer
	s := newChatSession(app, &out)
	ctx := context.Background()

	assert.Equal(t, "chat> ", s.prompt())

	assert.False(t, s.handleLine(ctx, "hello"))
	assert.Equal(t, "Hello, world\n", out.String())
	assert.Equal(t, 2, app.Exchange.Log().Len())

	out.Reset()
	s.handleLine(ctx, "/upload "+writePDF(t, "guide.pdf"))
	assert.Contains(t, out.String(), "Document ready: guide.pdf")
	assert.Equal(t, 0, app.Exchange.Log().Len(), "a new session starts a fresh conversation")
	assert.Equal(t, "guide.pdf> ", s.prompt())

	out.Reset()
	s.handleLine(ctx, "what is in it?")
	assert.Equal(t, "From the document.\n", out.String())
	require.Len(t, svc.queries, 1)

	s.exportDir = t.TempDir()
	out.Reset()
	s.handleLine(ctx, "/export")
	assert.Contains(t, out.String(), "Saved "+s.exportDir)
	entries, err := os.ReadDir(s.exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	exported, err := os.ReadFile(filepath.Join(s.exportDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(exported), "document: guide.pdf")
	assert.Contains(t, string(exported), "From the document.")

	out.Reset()
	s.handleLine(ctx, "/doc")
	assert.Contains(t, out.String(), "sess-42")

	s.handleLine(ctx, "/deep")
	assert.Equal(t, model.QualityDeep, s.quality)
	assert.Equal(t, "guide.pdf deep> ", s.prompt())

	out.Reset()
	s.handleLine(ctx, "/clear")
	assert.Contains(t, out.String(), "Document cleared")
	assert.Equal(t, document.StateNone, app.Documents.State())

	out.Reset()
	s.handleLine(ctx, "/clear")
	assert.Contains(t, out.String(), "No document to clear")

	out.Reset()
	s.handleLine(ctx, "/frobnicate")
	assert.Contains(t, out.String(), "Unknown command /frobnicate")

	assert.True(t, s.handleLine(ctx, "/quit"))
}

func TestChatSession_FailedExchange(t *testing.T) {
	isolate(t)
	svc, srv := newService(t)
	svc.chatFail = true
	app := newTestApp(t, srv.URL)
	var out bytes.Buffer
	s := newChatSession(app, &out)

	s.handleLine(context.Background(), "hello")
	assert.Contains(t, out.String(), exchange.ApologyMessage)
}

func TestChatSession_Reload(t *testing.T) {
	isolate(t)
	_, srv := newService(t)
	app := newTestApp(t, srv.URL)
	var out bytes.Buffer
	s := newChatSession(app, &out)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.toml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("[backend]\nmodel = \"gpt-4o\"\n")
	config.SetGlobal(app.Config, path)

	s.handleLine(ctx, "/reload")
	assert.Contains(t, out.String(), "Reloaded, model gpt-4o")
	assert.Equal(t, "gpt-4o", app.Client.Model())

	// The --model flag outranks the file.
	s.opts = &globalOptions{model: "gpt-4o-mini"}
	out.Reset()
	s.handleLine(ctx, "/reload")
	assert.Equal(t, "gpt-4o-mini", app.Client.Model())

	write("[backend]\nmodel = \"nope\"\n")
	s.opts = nil
	out.Reset()
	s.handleLine(ctx, "/reload")
	assert.Contains(t, out.String(), "[FAIL]")
	assert.Equal(t, "gpt-4o-mini", app.Client.Model())
}

func TestCompleteCommand(t *testing.T) {
	assert.Equal(t, []string{"/upload"}, completeCommand("/up"))
	assert.ElementsMatch(t, []string{"/deep", "/doc"}, completeCommand("/d"))
	assert.Equal(t, []string{"/reload"}, completeCommand("/rel"))
	assert.Nil(t, completeCommand("hello"))
}

// =============================================================================
// HOT RELOAD
// =============================================================================

func TestReloadConfig(t *testing.T) {
	isolate(t)
	_, srv := newService(t)
	app := newTestApp(t, srv.URL)
	bridge := chat.NewBridge(0)

	next := app.Config.Clone()
	next.Backend.Model = "gpt-4o"
	next.Backend.APIKey = "sk-new"
	next.Speech.Mode = "always"
	reloadConfig(app, bridge, &globalOptions{}, "cfg.toml", next, nil)

	assert.Equal(t, "gpt-4o", app.Client.Model())
	assert.Equal(t, "always", string(app.Announcer.Mode()))
	assert.Equal(t, "gpt-4o", config.Global().Backend.Model)

	// The --model flag outranks the file.
	next = app.Config.Clone()
	next.Backend.Model = "gpt-4-turbo"
	reloadConfig(app, bridge, &globalOptions{model: "gpt-4o-mini"}, "cfg.toml", next, nil)
	assert.Equal(t, "gpt-4o-mini", app.Client.Model())

	// A broken file leaves the running settings alone.
	reloadConfig(app, bridge, &globalOptions{}, "cfg.toml", nil, errors.New("bad toml"))
	assert.Equal(t, "gpt-4o-mini", app.Client.Model())
}

// =============================================================================
// OUTPUT AND ERRORS
// =============================================================================

func TestFragmentPrinter(t *testing.T) {
	var out bytes.Buffer
	p := &fragmentPrinter{w: &out}

	l, _ := model.NewLog().AppendUser("q")
	l, _ = l.BeginAssistant()
	p.observe(l)
	l, _ = l.AppendFragment("Hel")
	p.observe(l)
	l, _ = l.AppendFragment("lo")
	p.observe(l)
	assert.Equal(t, "Hello", out.String())

	l, _ = l.CompleteAssistant(nil)
	last, _ := l.Last()
	p.observe(l)
	p.finish(last)
	assert.Equal(t, "Hello\n", out.String())

	// A grounded answer arrives complete and is printed by finish alone.
	out.Reset()
	l, _ = l.AppendUser("again")
	answer := "Grounded."
	l, _ = l.CompleteAssistant(&answer)
	p.observe(l)
	assert.Empty(t, out.String())
	last, _ = l.Last()
	p.finish(last)
	assert.Equal(t, "Grounded.\n", out.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usageErrorf("bad"), ExitUsageError},
		{"validation upload", &document.UploadError{Reason: document.ReasonNotPDF, Name: "a"}, ExitUsageError},
		{"config", &ConfigError{Err: errors.New("x")}, ExitConfigError},
		{"config validation", config.ValidateErrors{{Field: "f", Message: "m"}}, ExitConfigError},
		{"timeout", &backend.TransportError{Kind: backend.KindTimeout, Op: "chat"}, ExitTimeoutError},
		{"unreachable", &backend.TransportError{Kind: backend.KindNotReachable, Op: "chat"}, ExitNetworkError},
		{"upload transport", &document.UploadError{
			Reason: document.ReasonTransport,
			Cause:  &backend.TransportError{Kind: backend.KindNotReachable, Op: "upload"},
		}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GetExitCode(tc.err))
		})
	}
}
