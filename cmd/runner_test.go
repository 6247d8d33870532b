package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	tu "github.com/desertthunder/plmerge/internal/testing"
)

var testURLs = []string{"http://media.test/0.mp3", "http://media.test/1.mp3"}

// newTestRunner returns a runner writing media into memory and history into a temp database.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	fetcher := tu.NewMockFetcher(fs).Serve(testURLs[0], "AAA").Fail(testURLs[1], errors.New("boom"))

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "test.db")
	config.Downloader.BaseDir = "/playlists"

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Fs:      fs,
		Fetcher: fetcher,
		Logger:  log.New(io.Discard),
		Output:  output,
	})
	return runner, output, fs
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			fs := afero.NewMemMapFs()
			fetcher := tu.NewMockFetcher(fs)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "custom.toml",
				Fs:         fs,
				Fetcher:    fetcher,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "custom.toml" {
				t.Errorf("expected configPath to be set, got %q", runner.configPath)
			}
			if runner.fs != fs {
				t.Error("expected fs to be set")
			}
			if runner.fetcher != fetcher {
				t.Error("expected fetcher to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected default configPath, got %q", runner.configPath)
			}
			if runner.fs == nil {
				t.Error("expected default fs to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "generate", "batch", "serve", "history", "tui"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})

	t.Run("recordKeys", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		runner.config.Downloader.PathKey = "output"

		keys := runner.recordKeys()
		if keys.Path != "output" {
			t.Errorf("Path key = %q, want output", keys.Path)
		}
		if keys.Sources != "mediaFiles" || keys.URL != "url" || keys.Partial != "partialReady" {
			t.Errorf("unexpected keys: %+v", keys)
		}
	})
}

func TestRequestFromFlags(t *testing.T) {
	parse := func(t *testing.T, args ...string) (models.GenerationRequest, map[string]any, error) {
		t.Helper()
		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: io.Discard})

		var (
			req    models.GenerationRequest
			record map[string]any
			err    error
		)
		cmd := &cli.Command{
			Name:  "test",
			Flags: playlistFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				req, record, err = runner.requestFromFlags(cmd)
				return nil
			},
		}
		if runErr := cmd.Run(context.Background(), append([]string{"test"}, args...)); runErr != nil {
			t.Fatalf("Run() error = %v", runErr)
		}
		return req, record, err
	}

	t.Run("urls in order", func(t *testing.T) {
		req, record, err := parse(t, "--id", "pl", "--url", testURLs[0], "--url", testURLs[1])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record != nil {
			t.Error("flag requests should not carry a record")
		}
		if req.ID != "pl" || len(req.Sources) != 2 || req.Sources[1].URL != testURLs[1] || req.Sources[1].Index != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
	})

	t.Run("generated id", func(t *testing.T) {
		req, _, err := parse(t, "--url", testURLs[0])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.ID == "" {
			t.Error("expected a generated id")
		}
	})

	t.Run("missing urls", func(t *testing.T) {
		if _, _, err := parse(t, "--id", "pl"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		if _, _, err := parse(t, "--id", "pl", "--url", "not a url"); !errors.Is(err, shared.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("record file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pl.yaml")
		data := "id: pl\nmediaFiles:\n  - url: " + testURLs[0] + "\n  - url: " + testURLs[1] + "\n"
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}

		req, record, err := parse(t, "--file", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record == nil || req.ID != "pl" || len(req.Sources) != 2 {
			t.Errorf("unexpected request %+v from record %v", req, record)
		}
	})

	t.Run("file and url conflict", func(t *testing.T) {
		if _, _, err := parse(t, "--file", "pl.json", "--url", testURLs[0]); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestRecordFiles(t *testing.T) {
	dir := t.TempDir()

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "pl.txt")
		os.WriteFile(path, []byte("id: pl"), 0644)
		if _, err := readRecord(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	for _, ext := range []string{".json", ".yaml"} {
		t.Run("write keeps format "+ext, func(t *testing.T) {
			path := filepath.Join(dir, "pl"+ext)
			record := map[string]any{"id": "pl", "mediaFilePath": "/playlists/pl/media_file", "partialReady": true}
			if err := writeRecord(path, record); err != nil {
				t.Fatalf("writeRecord() error = %v", err)
			}

			got, err := readRecord(path)
			if err != nil {
				t.Fatalf("readRecord() error = %v", err)
			}
			if got["mediaFilePath"] != "/playlists/pl/media_file" || got["partialReady"] != true {
				t.Errorf("record = %v", got)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("partial result is reported and recorded", func(t *testing.T) {
		runner, output, fs := newTestRunner(t)

		err := generateCommand(runner).Run(ctx, []string{"generate", "--id", "pl", "--url", testURLs[0], "--url", testURLs[1], "--json"})
		if err != nil {
			t.Fatalf("generate error = %v", err)
		}

		if got := tu.MustReadFile(t, fs, "/playlists/pl/media_file"); got != "AAA" {
			t.Errorf("media file = %q, want AAA", got)
		}
		tu.AssertNotExists(t, fs, "/playlists/pl/source_files")

		out := output.String()
		jsonStart := strings.LastIndex(out, "\n{") + 1
		if jsonStart == 0 {
			t.Fatalf("no JSON in output: %s", out)
		}
		var view map[string]any
		if err := json.NewDecoder(strings.NewReader(out[jsonStart:])).Decode(&view); err != nil {
			t.Fatalf("failed to decode result: %v\n%s", err, out)
		}
		if view["status"] != "partial" || view["path"] != "/playlists/pl/media_file" {
			t.Errorf("unexpected result: %v", view)
		}

		output.Reset()
		if err := historyCommand(runner).Run(ctx, []string{"history", "show", "pl"}); err != nil {
			t.Fatalf("history show error = %v", err)
		}
		if !strings.Contains(output.String(), "Status: partial") {
			t.Errorf("history should record the partial result: %s", output.String())
		}
	})

	t.Run("failure returns the error", func(t *testing.T) {
		runner, _, fs := newTestRunner(t)

		err := generateCommand(runner).Run(ctx, []string{"generate", "--id", "pl", "--url", testURLs[1]})
		if !errors.Is(err, shared.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
		tu.AssertNotExists(t, fs, "/playlists/pl/media_file")
	})

	t.Run("record file is updated", func(t *testing.T) {
		runner, _, _ := newTestRunner(t)

		path := filepath.Join(t.TempDir(), "pl.json")
		record := `{"id":"pl","mediaFiles":[{"url":"` + testURLs[0] + `"},{"url":"` + testURLs[1] + `"}]}`
		if err := os.WriteFile(path, []byte(record), 0644); err != nil {
			t.Fatal(err)
		}

		if err := generateCommand(runner).Run(ctx, []string{"generate", "--file", path}); err != nil {
			t.Fatalf("generate error = %v", err)
		}

		got, err := readRecord(path)
		if err != nil {
			t.Fatal(err)
		}
		if got["mediaFilePath"] != "/playlists/pl/media_file" || got["partialReady"] != true {
			t.Errorf("record not updated: %v", got)
		}
		if files, ok := got["mediaFiles"].([]any); !ok || len(files) != 2 {
			t.Errorf("sources should be preserved: %v", got["mediaFiles"])
		}
	})
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	runner, output, fs := newTestRunner(t)
	runner.config.Batch.RateLimit = 1000
	runner.config.Batch.Burst = 10

	manifest := models.Manifest{Requests: []models.ManifestEntry{
		{ID: "one", URLs: []string{testURLs[0]}},
		{ID: "two", URLs: []string{testURLs[0], testURLs[1]}},
	}}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	err = batchCommand(runner).Run(ctx, []string{"batch", "--manifest", path, "--output", "/reports"})
	if err != nil {
		t.Fatalf("batch error = %v", err)
	}

	for _, want := range []string{"Batch Complete", "Playlists: 2", "Succeeded: 1  Partial: 1  Failed: 0", "Manifest: /reports/batch_manifest.json"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("output missing %q: %s", want, output.String())
		}
	}
	tu.AssertFileExists(t, fs, "/reports/batch_manifest.json")
	tu.AssertFileExists(t, fs, "/playlists/one/media_file")
	tu.AssertFileExists(t, fs, "/playlists/two/media_file")

	output.Reset()
	if err := historyCommand(runner).Run(ctx, []string{"history", "list"}); err != nil {
		t.Fatalf("history list error = %v", err)
	}
	for _, want := range []string{"one", "two", "succeeded", "partial"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("history missing %q: %s", want, output.String())
		}
	}
}

func TestHistoryShowMissing(t *testing.T) {
	runner, _, _ := newTestRunner(t)

	err := historyCommand(runner).Run(context.Background(), []string{"history", "show", "nope"})
	if !errors.Is(err, shared.ErrGenerationNotFound) {
		t.Errorf("expected ErrGenerationNotFound, got %v", err)
	}
}

func TestSetupConfig(t *testing.T) {
	runner, output, _ := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := setupCommand(runner).Run(context.Background(), []string{"setup", "config", "--config", path}); err != nil {
		t.Fatalf("setup config error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(output.String(), "Wrote "+path) {
		t.Errorf("unexpected output: %s", output.String())
	}

	if err := setupCommand(runner).Run(context.Background(), []string{"setup", "config", "--config", path}); err == nil {
		t.Error("expected an error when the config already exists")
	}

	if err := setupCommand(runner).Run(context.Background(), []string{"setup", "check", "--config", path}); err != nil {
		t.Errorf("setup check error = %v", err)
	}
}

func TestSetupDatabase(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	ctx := context.Background()

	conf := "[database]\npath = \"" + runner.config.Database.Path + "\"\n"
	if err := os.WriteFile(configPath, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}

	if err := setupCommand(runner).Run(ctx, []string{"setup", "database", "--config", configPath}); err != nil {
		t.Fatalf("setup database error = %v", err)
	}
	if _, err := os.Stat(runner.config.Database.Path); err != nil {
		t.Fatalf("database not created: %v", err)
	}

	if err := setupCommand(runner).Run(ctx, []string{"setup", "database", "--config", configPath, "--rollback"}); err != nil {
		t.Fatalf("rollback error = %v", err)
	}
	if err := setupCommand(runner).Run(ctx, []string{"setup", "database", "--config", configPath, "--rollback"}); !errors.Is(err, shared.ErrNoMigrations) {
		t.Errorf("expected ErrNoMigrations, got %v", err)
	}
}
