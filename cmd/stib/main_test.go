package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	rootpkg "tools.zach/dev/stib"
	"tools.zach/dev/stib/internal/config"
	"tools.zach/dev/stib/internal/screentime"
	"tools.zach/dev/stib/internal/telegram"
)

// ///////////////////////////////////////////////
// resolveVersion Tests
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionDev(t *testing.T) {
	// Test binaries may or may not carry VCS info.
	original := version
	defer func() { version = original }()

	version = "dev"
	if got := resolveVersion(); !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, expected to start with 'dev'", got)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := defaultDataDir()
	if !strings.HasSuffix(dir, ".stib") {
		t.Errorf("defaultDataDir() = %q, want path ending in .stib", dir)
	}
}

// ///////////////////////////////////////////////
// PID Tests
// ///////////////////////////////////////////////

func TestPidToken(t *testing.T) {
	a, b := pidToken(), pidToken()
	if a == b {
		t.Errorf("pidToken() returned the same value twice: %q", a)
	}
	if len(a) != 16 {
		t.Errorf("pidToken() length = %d, want 16", len(a))
	}
}

func TestAcquirePID_WritesContent(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	lock, err := acquirePID(dp)
	if err != nil {
		t.Fatalf("acquirePID() error: %v", err)
	}
	defer lock.Release()

	// Read through the open handle; on Windows the lock prevents os.ReadFile.
	data := make([]byte, 64)
	n, _ := lock.f.ReadAt(data, 0)
	want := fmt.Sprintf("%d:%s", os.Getpid(), lock.token)
	if string(data[:n]) != want {
		t.Errorf("PID file content = %q, want %q", string(data[:n]), want)
	}
}

func TestAcquirePID_SecondInstanceRejected(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	first, err := acquirePID(dp)
	if err != nil {
		t.Fatalf("acquirePID() error: %v", err)
	}
	defer first.Release()

	if _, err := acquirePID(dp); !errors.Is(err, errInstanceRunning) {
		t.Errorf("second acquirePID() error = %v, want errInstanceRunning", err)
	}
}

func TestAcquirePID_StaleFileReused(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	if err := os.WriteFile(dp.PID(), []byte("99999:staletoken-longer-than-ours"), 0o600); err != nil {
		t.Fatal(err)
	}

	lock, err := acquirePID(dp)
	if err != nil {
		t.Fatalf("acquirePID() over stale file: %v", err)
	}
	data := make([]byte, 64)
	n, _ := lock.f.ReadAt(data, 0)
	if strings.Contains(string(data[:n]), "stale") {
		t.Errorf("stale content survived: %q", string(data[:n]))
	}
	lock.Release()

	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file should be removed on release")
	}
}

func TestPidLockRelease_MismatchedToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	lock, err := acquirePID(dp)
	if err != nil {
		t.Fatal(err)
	}
	lock.token = "someone-else"
	lock.Release()

	if _, err := os.Stat(dp.PID()); os.IsNotExist(err) {
		t.Error("PID file owned by another token should be kept")
	}
}

func TestPidLockRelease_Nil(t *testing.T) {
	var lock *pidLock
	lock.Release()
}

// ///////////////////////////////////////////////
// Router Tests
// ///////////////////////////////////////////////

func TestNewRouter(t *testing.T) {
	tracker := &screentime.Tracker{}
	ctrl := screentime.NewController(tracker, time.Second, false, screentime.Replies{
		Started: "started",
		Stopped: "stopped {elapsed}",
		Status:  "{state}",
		Help:    "help",
	})
	r := newRouter(ctrl)

	steps := []struct {
		cmd  string
		want string
	}{
		{"help", "help"},
		{"status", "paused"},
		{"start", "started"},
		{"status", "running"},
		{"stop", "stopped 00:00:00"},
		{"status", "paused"},
		{"snooze", telegram.UnknownReply},
	}
	for _, s := range steps {
		if got := r.Dispatch(telegram.Command{Name: s.cmd}); got != s.want {
			t.Errorf("/%s = %q, want %q", s.cmd, got, s.want)
		}
	}

	var names []string
	for _, c := range r.Commands() {
		names = append(names, c.Command)
	}
	if got := strings.Join(names, ","); got != "help,start,stop,status" {
		t.Errorf("Commands() = %s", got)
	}
}

// ///////////////////////////////////////////////
// assemble Tests
// ///////////////////////////////////////////////

// fakeChat records notifications and replays commands once listening.
type fakeChat struct {
	mu       sync.Mutex
	notified []string
	commands []string
	replies  []string
}

func (f *fakeChat) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, text)
	return nil
}

func (f *fakeChat) Listen(ctx context.Context, r *telegram.Router) error {
	for _, name := range f.commands {
		reply := r.Dispatch(telegram.Command{Name: name})
		f.mu.Lock()
		f.replies = append(f.replies, reply)
		f.mu.Unlock()
	}
	<-ctx.Done()
	return nil
}

func (f *fakeChat) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notified...)
}

func TestAssemble_RemindsAfterStart(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timer.TickIntervalMS = 1
	cfg.Timer.PollIntervalMS = 1
	cfg.Timer.NotificationThreshold = 3
	cfg.Timer.NotificationTimeout = 3
	cfg.Messages.Prompts = []string{"look away"}

	chat := &fakeChat{commands: []string{"start"}}
	a := assemble(cfg, chat, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.coordinator.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for !contains(chat.snapshot(), "look away") {
		if time.Now().After(deadline) {
			t.Fatalf("no reminder sent; notified = %q, elapsed = %d", chat.snapshot(), a.tracker.Elapsed())
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("coordinator did not stop")
	}

	got := chat.snapshot()
	if len(got) < 4 {
		t.Fatalf("notified = %q, want greeting, reminders, shutdown, farewell", got)
	}
	if got[0] != cfg.Messages.Greeting {
		t.Errorf("first message = %q, want greeting", got[0])
	}
	if !contains(got, cfg.Messages.ShuttingDown) {
		t.Errorf("notified = %q, missing shutdown notice", got)
	}
	if last := got[len(got)-1]; last != cfg.Messages.Farewell {
		t.Errorf("last message = %q, want farewell", last)
	}
	if chat.replies[0] != cfg.Messages.Started {
		t.Errorf("/start reply = %q", chat.replies[0])
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ///////////////////////////////////////////////
// daemon Tests
// ///////////////////////////////////////////////

// noEnv is an environment with nothing set.
func noEnv(string) (string, bool) { return "", false }

func TestDaemon_Version(t *testing.T) {
	var stdout bytes.Buffer
	code := daemon(context.Background(), []string{"-version"}, &stdout, io.Discard, noEnv)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.HasPrefix(stdout.String(), "stib ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestDaemon_BadFlag(t *testing.T) {
	if code := daemon(context.Background(), []string{"-bogus"}, io.Discard, io.Discard, noEnv); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestDaemon_MissingSecrets(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	code := daemon(context.Background(), []string{"-data-dir", dir}, io.Discard, &stderr, noEnv)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "bot token not configured") {
		t.Errorf("stderr = %q, want missing token message", stderr.String())
	}

	seeded, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("default config not seeded: %v", err)
	}
	if !bytes.Equal(seeded, rootpkg.DefaultConfigTOML) {
		t.Error("seeded config differs from the embedded default")
	}
	if _, err := os.Stat(filepath.Join(dir, "stib.pid")); !os.IsNotExist(err) {
		t.Error("PID file left behind after a failed start")
	}
}

func TestDaemon_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[timer]\ntick_interval_ms = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stderr bytes.Buffer

	if code := daemon(context.Background(), []string{"-data-dir", dir}, io.Discard, &stderr, noEnv); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "tick_interval_ms") {
		t.Errorf("stderr = %q, want validation message", stderr.String())
	}
}

func TestDaemon_AlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	lock, err := acquirePID(DataPaths{Root: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()
	var stderr bytes.Buffer

	if code := daemon(context.Background(), []string{"-data-dir", dir}, io.Discard, &stderr, noEnv); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "already running") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

// botServer is a minimal Bot API that records sendMessage texts.
type botServer struct {
	mu    sync.Mutex
	texts []string
}

func (b *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"stib","username":"stib_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		b.mu.Lock()
		b.texts = append(b.texts, r.PostForm.Get("text"))
		b.mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	case strings.HasSuffix(r.URL.Path, "/setMyCommands"):
		io.WriteString(w, `{"ok":true,"result":true}`)
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		time.Sleep(10 * time.Millisecond)
		io.WriteString(w, `{"ok":true,"result":[]}`)
	default:
		http.NotFound(w, r)
	}
}

func (b *botServer) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

func TestDaemon_RunAndInterrupt(t *testing.T) {
	api := &botServer{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	dir := t.TempDir()
	cfgText := fmt.Sprintf(`
[telegram]
api_endpoint = "%s/bot%%s/%%s"
poll_timeout_seconds = 1
retry_max = 0

[log]
console = false
`, srv.URL)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfgText), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{config.EnvBotSecret: "123:abc", config.EnvChatID: "42"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- daemon(ctx, []string{"-data-dir", dir}, io.Discard, io.Discard, lookup) }()

	def := config.DefaultConfig()
	deadline := time.Now().Add(5 * time.Second)
	for !contains(api.sent(), def.Messages.Greeting) {
		if time.Now().After(deadline) {
			t.Fatal("greeting never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit")
	}

	want := []string{def.Messages.Greeting, def.Messages.ShuttingDown, def.Messages.Farewell}
	if got := api.sent(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sent = %q, want %q", got, want)
	}

	logData, err := os.ReadFile(filepath.Join(dir, "stib.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), "all cleaned up") {
		t.Error("log missing final cleanup line")
	}
	if _, err := os.Stat(filepath.Join(dir, "stib.pid")); !os.IsNotExist(err) {
		t.Error("PID file not removed on exit")
	}
}
