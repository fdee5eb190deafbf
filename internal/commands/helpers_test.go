package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/diogo/techtouch/internal/api"
	"github.com/diogo/techtouch/internal/config"
	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/tui"
)

type mockTUI struct {
	runCalled    bool
	runDeps      tui.Deps
	runErr       error
	configCalled bool
	configCfg    config.Config
	historyKind  history.Kind
	historyRes   tui.HistorySelectorResult
	historyErr   error
}

func (m *mockTUI) Run(ctx context.Context, d tui.Deps) error {
	m.runCalled = true
	m.runDeps = d
	return m.runErr
}

func (m *mockTUI) RunConfig(cfg config.Config) error {
	m.configCalled = true
	m.configCfg = cfg
	return nil
}

func (m *mockTUI) RunHistorySelector(store tui.HistoryStore, kind history.Kind, lang string) (tui.HistorySelectorResult, error) {
	m.historyKind = kind
	return m.historyRes, m.historyErr
}

// testEnv points the configuration at a temporary directory and replaces
// the client factory and the TUI
type testEnv struct {
	home   string
	client *api.MockGeminiClient
	tui    *mockTUI
	key    string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		home:   t.TempDir(),
		client: &api.MockGeminiClient{},
		tui:    &mockTUI{},
		key:    "AIzaSyTestKey1234567890",
	}
	t.Setenv(config.HomeEnv, env.home)
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvAPIKeyFallback, "")

	oldDeps := deps
	oldStdin := hasStdin
	deps = &Dependencies{
		NewClient: func(ctx context.Context, apiKey string, opts ...api.ClientOption) (api.GeminiClientInterface, error) {
			if apiKey != env.key {
				t.Errorf("client created with key %q", apiKey)
			}
			return env.client, nil
		},
		LoadAPIKey: func() (string, config.KeySource, error) {
			return env.key, config.SourceCredentials, nil
		},
		TUI: env.tui,
	}
	hasStdin = func() bool { return false }
	t.Cleanup(func() {
		deps = oldDeps
		hasStdin = oldStdin
	})
	return env
}

func (e *testEnv) historyStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewStore(e.home)
	if err != nil {
		t.Fatalf("history.NewStore failed: %v", err)
	}
	return store
}

// resetFlags restores every flag variable between command runs
func resetFlags() {
	modelFlag, personaFlag, verboseFlag = "", "", false
	outputFlag, fileFlag, imageFlag = "", "", ""
	rawFlag, searchFlag = false, false
	_ = rootCmd.Flags().Set("version", "false")

	chatTabFlag, chatPickFlag, chatContinueFlag = "", false, false
	newsStreamFlag, newsRefreshFlag, newsJSONFlag, newsDetailsFlag = false, false, false, false
	historyKindFlag, historyFormatFlag, historyOutputFlag = "", "markdown", ""
	historySystemFlag, historyContentFlag = false, false
	translatePrintFlag = false
	serveAddrFlag = ""
}

// runCommand executes the root command with args and returns stdout and stderr
func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
