package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diogo/techtouch/internal/history"
	"github.com/diogo/techtouch/internal/models"
	"github.com/diogo/techtouch/internal/tui"
)

func TestChatCommand_Flags(t *testing.T) {
	for _, name := range []string{"tab", "pick", "continue"} {
		if chatCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q not found", name)
		}
	}
}

func TestRunChat_Table(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		seed       bool
		historyRes tui.HistorySelectorResult
		wantRun    bool
		wantTab    string
		wantConv   bool
		wantNotice bool
	}{
		{
			name:    "home screen",
			args:    []string{"chat"},
			wantRun: true,
		},
		{
			name:    "start tab",
			args:    []string{"chat", "--tab", "news"},
			wantRun: true,
			wantTab: "news",
		},
		{
			name:       "pick confirmed",
			args:       []string{"chat", "--pick"},
			historyRes: tui.HistorySelectorResult{Confirmed: true, Conversation: &history.Conversation{ID: "conv-123"}},
			wantRun:    true,
			wantTab:    "chat",
			wantConv:   true,
		},
		{
			name:       "pick cancelled",
			args:       []string{"chat", "--pick"},
			historyRes: tui.HistorySelectorResult{Confirmed: false},
			wantRun:    false,
		},
		{
			name:       "continue without history",
			args:       []string{"chat", "--continue"},
			wantRun:    true,
			wantTab:    "chat",
			wantNotice: true,
		},
		{
			name:     "continue latest",
			args:     []string{"chat", "-c"},
			seed:     true,
			wantRun:  true,
			wantTab:  "chat",
			wantConv: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			env.tui.historyRes = tt.historyRes
			if tt.seed {
				seedHistory(t, env)
			}

			_, stderr, err := runCommand(t, "", tt.args...)
			if err != nil {
				t.Fatalf("runChat() error = %v", err)
			}

			if env.tui.runCalled != tt.wantRun {
				t.Fatalf("TUI run = %v, want %v", env.tui.runCalled, tt.wantRun)
			}
			if !tt.wantRun {
				return
			}

			d := env.tui.runDeps
			if d.Chat == nil || d.Feeds == nil || d.Personal == nil {
				t.Error("TUI should receive every service")
			}
			if d.ModelName != models.DefaultModel.Label {
				t.Errorf("ModelName = %q", d.ModelName)
			}
			if d.StartTab != tt.wantTab {
				t.Errorf("StartTab = %q, want %q", d.StartTab, tt.wantTab)
			}
			if (d.Conversation != nil) != tt.wantConv {
				t.Errorf("Conversation = %v, want set=%v", d.Conversation, tt.wantConv)
			}
			if tt.wantNotice != strings.Contains(stderr, "No previous conversation") {
				t.Errorf("stderr = %q", stderr)
			}
		})
	}
}

func TestRunChat_PickUsesChatHistory(t *testing.T) {
	env := setupTestEnv(t)
	if _, _, err := runCommand(t, "", "chat", "--pick"); err != nil {
		t.Fatal(err)
	}
	if env.tui.historyKind != history.KindChat {
		t.Errorf("selector kind = %q", env.tui.historyKind)
	}
}

func TestRunChat_Errors(t *testing.T) {
	t.Run("tui failure", func(t *testing.T) {
		env := setupTestEnv(t)
		env.tui.runErr = errors.New("no tty")
		if _, _, err := runCommand(t, "", "chat"); err == nil || !strings.Contains(err.Error(), "no tty") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("selector failure", func(t *testing.T) {
		env := setupTestEnv(t)
		env.tui.historyErr = errors.New("boom")
		if _, _, err := runCommand(t, "", "chat", "--pick"); err == nil || !strings.Contains(err.Error(), "history selector failed") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("model flag", func(t *testing.T) {
		env := setupTestEnv(t)
		if _, _, err := runCommand(t, "", "chat", "-m", "pro"); err != nil {
			t.Fatal(err)
		}
		if want := models.ModelFromName("pro").Label; env.tui.runDeps.ModelName != want {
			t.Errorf("ModelName = %q, want %q", env.tui.runDeps.ModelName, want)
		}
	})
}

func TestInfoCmd(t *testing.T) {
	env := setupTestEnv(t)
	env.client.GenerateContentVal = &models.ModelOutput{Text: "Join the Telegram channel"}

	out, _, err := runCommand(t, "", "info", "where", "is", "telegram")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "TechTouch") || !strings.Contains(out, "Telegram channel") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(env.client.LastPrompt, "where is telegram") {
		t.Errorf("prompt = %q", env.client.LastPrompt)
	}

	list, err := env.historyStore(t).ListConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Kind != history.KindInfo {
		t.Errorf("expected one info conversation, got %d", len(list))
	}
}

func TestEditImageCmd(t *testing.T) {
	env := setupTestEnv(t)
	env.client.EditImageVal = &models.ModelOutput{
		Text:   "Background removed",
		Images: []models.GeneratedImage{{MIMEType: "image/png", Data: []byte("png-bytes")}},
	}
	src := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(src, []byte("\x89PNG\r\n\x1a\n0000IHDR"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCommand(t, "", "edit-image", src, "remove", "the", "background")
	if err != nil {
		t.Fatal(err)
	}
	if env.client.LastPrompt != "remove the background" {
		t.Errorf("prompt = %q", env.client.LastPrompt)
	}
	if !strings.Contains(out, "Background removed") || !strings.Contains(out, "Saved") {
		t.Errorf("output:\n%s", out)
	}
	matches, _ := filepath.Glob(filepath.Join(env.home, "downloads", "edited-photo_*.png"))
	if len(matches) != 1 {
		t.Errorf("saved images = %v", matches)
	}
}

func TestTranslateCmd(t *testing.T) {
	env := setupTestEnv(t)
	env.client.GenerateContentVal = &models.ModelOutput{Text: "مرحبا بالعالم"}
	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("Hello world"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCommand(t, "", "translate", "--print", src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "مرحبا بالعالم") || !strings.Contains(out, "Translation saved to") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(env.client.LastPrompt, "Hello world") {
		t.Errorf("prompt should embed the document text: %q", env.client.LastPrompt)
	}
	matches, _ := filepath.Glob(filepath.Join(env.home, "downloads", "*.docx"))
	if len(matches) != 1 {
		t.Errorf("translated files = %v", matches)
	}

	if _, _, err := runCommand(t, "", "translate", filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("missing file should fail")
	}
}
