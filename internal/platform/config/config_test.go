package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("FULLBUFFER_TEST_STR", "value")
	t.Setenv("FULLBUFFER_TEST_EMPTY", "")

	if got := GetEnv("FULLBUFFER_TEST_STR", "x"); got != "value" {
		t.Errorf("expected value, got %q", got)
	}
	if got := GetEnv("FULLBUFFER_TEST_EMPTY", "x"); got != "x" {
		t.Errorf("empty should fall back, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FULLBUFFER_TEST_INT", "42")
	t.Setenv("FULLBUFFER_TEST_BAD_INT", "forty")

	if got := GetEnvInt("FULLBUFFER_TEST_INT", 1); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := GetEnvInt("FULLBUFFER_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("invalid int should fall back, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("FULLBUFFER_TEST_DUR", "750ms")
	t.Setenv("FULLBUFFER_TEST_BAD_DUR", "soon")

	if got := GetEnvDuration("FULLBUFFER_TEST_DUR", time.Second); got != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", got)
	}
	if got := GetEnvDuration("FULLBUFFER_TEST_BAD_DUR", time.Second); got != time.Second {
		t.Errorf("invalid duration should fall back, got %v", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FULLBUFFER_TEST_BOOL", "true")

	if !GetEnvBool("FULLBUFFER_TEST_BOOL", false) {
		t.Error("expected true")
	}
	if !GetEnvBool("FULLBUFFER_TEST_UNSET_BOOL", true) {
		t.Error("unset should fall back to true")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FULLBUFFER_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("FULLBUFFER_TEST_DOTENV") })

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("FULLBUFFER_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
}

type tuning struct {
	WindowSize  time.Duration `yaml:"window_size"`
	PollCeiling int           `yaml:"poll_ceiling"`
	Ratio       float64       `yaml:"ratio"`
}

func TestLoadYAML(t *testing.T) {
	t.Run("overrides_named_fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		data := "window_size: 10s\npoll_ceiling: 20\n"
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}

		got := tuning{WindowSize: 30 * time.Second, Ratio: 0.25}
		if err := LoadYAML(path, &got); err != nil {
			t.Fatalf("LoadYAML: %v", err)
		}
		want := tuning{WindowSize: 10 * time.Second, PollCeiling: 20, Ratio: 0.25}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("missing_file_is_ignored", func(t *testing.T) {
		got := tuning{Ratio: 0.25}
		if err := LoadYAML(filepath.Join(t.TempDir(), "absent.yaml"), &got); err != nil {
			t.Fatalf("LoadYAML: %v", err)
		}
		if got.Ratio != 0.25 {
			t.Errorf("defaults changed: %+v", got)
		}
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("window_size: [oops"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := LoadYAML(path, &tuning{}); err == nil {
			t.Error("expected parse error")
		}
	})
}
