package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rafflebot/internal/status"
	logx "rafflebot/pkg/logx"
)

func TestDecodeJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	js := `{
  "telegram": {"token": "t", "owner_user_ids": [1, 2], "poll_timeout": "5s"},
  "logging": {"level": "debug", "console": true},
  "storage": {"driver": "sqlite", "path": "./data/raffle.db", "busy_timeout": "3s"},
  "numbers": {"max_expansion": 500},
  "status": {"policy": "stack", "max_stack": 3}
}`
	ym := `
telegram:
  token: t
  owner_user_ids: [1, 2]
  poll_timeout: 5s
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./data/raffle.db
  busy_timeout: 3s
numbers:
  max_expansion: 500
status:
  policy: stack
  max_stack: 3
`
	a, err := Decode("cfg.json", []byte(js))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	b, err := Decode("cfg.yaml", []byte(ym))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("json and yaml differ (-json +yaml):\n%s", diff)
	}
	if got := a.Parser().MaxExpansion; got != 500 {
		t.Fatalf("max expansion = %d", got)
	}
	if p, n := a.StatusPolicy(); p != status.PolicyStack || n != 3 {
		t.Fatalf("status policy = %q/%d", p, n)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, file, body string
	}{
		{"unknown field", "c.json", `{"nope": 1}`},
		{"trailing data", "c.json", `{} {}`},
		{"bad yaml", "c.yml", "a: [1,"},
		{"unknown yaml field", "c.yaml", "storage:\n  drvier: file\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tc.file, []byte(tc.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestEmptyYAMLIsZeroConfig(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.yaml", nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Storage.Driver != "" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"default ok", func(*Config) {}, ""},
		{"bad busy timeout", func(c *Config) { c.Storage.BusyTimeout = "soon" }, "storage.busy_timeout"},
		{"negative dial timeout", func(c *Config) { c.Storage.Redis.DialTimeout = "-1s" }, "storage.redis.dial_timeout"},
		{"bad poll timeout", func(c *Config) { c.Telegram.PollTimeout = "x" }, "telegram.poll_timeout"},
		{"bad policy", func(c *Config) { c.Status.Policy = "replace" }, "status.policy"},
		{"negative expansion", func(c *Config) { c.Numbers.MaxExpansion = -1 }, "numbers.max_expansion"},
		{"negative keep", func(c *Config) { c.Backup.Keep = -2 }, "backup.keep"},
		{"bad schedule", func(c *Config) { c.Backup.Enabled = true; c.Backup.Schedule = "often" }, "backup.schedule"},
		{"bad timezone", func(c *Config) { c.Backup.Enabled = true; c.Backup.Timezone = "Mars/Base" }, "backup.timezone"},
		{"disabled backup ignores schedule", func(c *Config) { c.Backup.Schedule = "often" }, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestRuntimeDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if d, err := cfg.PollTimeout(); err != nil || d != defaultPollTimeout {
		t.Fatalf("poll timeout = %v, %v", d, err)
	}
	if r, b := cfg.RateLimit(); r != defaultRatePerSec || b != defaultBurst {
		t.Fatalf("rate limit = %v/%d", r, b)
	}
	if n := cfg.MaxImportBytes(); n != defaultMaxImportBytes {
		t.Fatalf("max import = %d", n)
	}
	if spec, dir := cfg.BackupSchedule(); spec != "@daily" || dir != "./backups" {
		t.Fatalf("backup = %q %q", spec, dir)
	}
	if p, _ := cfg.StatusPolicy(); p != status.PolicyKeep {
		t.Fatalf("policy = %q", p)
	}

	cfg.Storage.Redis.DialTimeout = "2s"
	sc, err := cfg.StorageRuntime()
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if sc.Driver != "file" || sc.Redis.DialTimeout != 2*time.Second {
		t.Fatalf("storage runtime = %+v", sc)
	}
}

func TestChangedSections(t *testing.T) {
	t.Parallel()

	a := Default()
	b := Default()
	b.Status.Policy = "stack"
	b.Storage.Path = "/elsewhere"

	got := ChangedSections(a, b)
	if diff := cmp.Diff([]string{"storage", "status"}, got); diff != "" {
		t.Fatalf("changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"storage"}, RestartRequired(got)); diff != "" {
		t.Fatalf("restart (-want +got):\n%s", diff)
	}
	if got := ChangedSections(a, a); len(got) != 0 {
		t.Fatalf("identical configs changed: %v", got)
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Telegram.Token = "123:secret"
	cfg.Storage.Postgres.DSN = "postgres://u:pw@h/db"
	out := cfg.Redacted()
	if strings.Contains(out, "secret") || strings.Contains(out, "pw@") {
		t.Fatalf("secrets leaked: %s", out)
	}
	if cfg.Telegram.Token != "123:secret" {
		t.Fatalf("Redacted mutated the receiver")
	}
}

func TestManagerLoadAndPublish(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(`{"storage": {"driver": "memory"}}`)

	m := NewManager(path, logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Get did not return committed config")
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if m.reload() {
		t.Fatalf("unchanged file should not publish")
	}

	write(`{"storage": {"driver": "memory"}, "status": {"policy": "stack"}}`)
	if !m.reload() {
		t.Fatalf("changed file should publish")
	}
	select {
	case got := <-ch:
		if got.Status.Policy != "stack" {
			t.Fatalf("published policy = %q", got.Status.Policy)
		}
	default:
		t.Fatalf("nothing published")
	}

	write(`{"status": {"policy": "bogus"}}`)
	if m.reload() {
		t.Fatalf("invalid file should be rejected")
	}
	if m.Get().Status.Policy != "stack" {
		t.Fatalf("rejected config was committed")
	}
}

func TestPublishKeepsLatest(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json", logx.Nop())
	ch := m.Subscribe(1)
	first, second := Default(), Default()
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatalf("subscriber got stale config")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after Unsubscribe")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case got := <-ch:
			if got.Numbers.MaxExpansion != 7 {
				t.Fatalf("max expansion = %d", got.Numbers.MaxExpansion)
			}
			return
		case <-tick.C:
			// the watcher may not be registered yet; rewrite until it is.
			_ = os.WriteFile(path, []byte("storage:\n  driver: memory\nnumbers:\n  max_expansion: 7\n"), 0o600)
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr string
	}{
		{raw: "", def: time.Second, want: time.Second},
		{raw: " 0s ", def: time.Second, want: time.Second},
		{raw: "250ms", def: time.Second, want: 250 * time.Millisecond},
		{raw: "-1s", wantErr: "x.timeout: duration must be >= 0"},
		{raw: "soon", wantErr: `x.timeout: invalid duration "soon"`},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x.timeout", tt.raw, tt.def)
		if tt.wantErr != "" {
			if err == nil || !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Fatalf("ParseDurationOrDefault(%q) err = %v, want %q", tt.raw, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, %v; want %v", tt.raw, got, err, tt.want)
		}
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("blank field = %v, %v", d, err)
	}
}
