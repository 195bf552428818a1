package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/siteaudit/internal/config"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	data, err := Encode(map[string]string{"url": "https://example.org/?a=1&b=<2>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "{\n    \"url\": \"https://example.org/?a=1&b=<2>\"\n}\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, string(data))
	}
}

func TestDirStore(t *testing.T) {
	t.Parallel()

	t.Run("save load exists", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		store, err := NewDirStore(root, "helping-hands")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()

		ok, err := store.Exists(ctx, ReportName("Donors"))
		if err != nil || ok {
			t.Fatalf("expected missing snapshot, got %v %v", ok, err)
		}
		if err := store.Save(ctx, ReportName("Donors"), []byte(`["doc"]`)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if ok, _ := store.Exists(ctx, ReportName("Donors")); !ok {
			t.Error("expected snapshot to exist")
		}

		data, err := os.ReadFile(filepath.Join(root, "helping-hands", "reports", "Donors_report.json"))
		if err != nil {
			t.Fatalf("expected file on disk: %v", err)
		}
		if string(data) != `["doc"]` {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("missing is ErrNotFound", func(t *testing.T) {
		t.Parallel()

		store, _ := NewDirStore(t.TempDir(), "org")
		if _, err := store.Load(context.Background(), WebsiteMap); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects escaping names", func(t *testing.T) {
		t.Parallel()

		store, _ := NewDirStore(t.TempDir(), "org")
		for _, name := range []string{"", "../x.json", "/etc/passwd", "a/../../b"} {
			if err := store.Save(context.Background(), name, nil); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Save(%q): expected ErrInvalidName, got %v", name, err)
			}
		}
		if _, err := NewDirStore(t.TempDir(), ".."); !errors.Is(err, ErrInvalidName) {
			t.Errorf("expected ErrInvalidName for organization, got %v", err)
		}
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("computes once then loads", func(t *testing.T) {
		t.Parallel()

		store, _ := NewDirStore(t.TempDir(), "org")
		ctx := context.Background()
		calls := 0
		compute := func(context.Context) (map[string]string, error) {
			calls++
			return map[string]string{"https://example.org/": "caption"}, nil
		}

		first, cached, err := Resolve(ctx, store, Captions, false, compute)
		if err != nil || cached {
			t.Fatalf("expected fresh compute, got cached=%v err=%v", cached, err)
		}
		second, cached, err := Resolve(ctx, store, Captions, false, compute)
		if err != nil || !cached {
			t.Fatalf("expected cached value, got cached=%v err=%v", cached, err)
		}
		if calls != 1 {
			t.Errorf("expected 1 compute call, got %d", calls)
		}
		if first["https://example.org/"] != second["https://example.org/"] {
			t.Errorf("cached value differs: %v vs %v", first, second)
		}
	})

	t.Run("force recomputes", func(t *testing.T) {
		t.Parallel()

		store, _ := NewDirStore(t.TempDir(), "org")
		ctx := context.Background()
		n := 0
		compute := func(context.Context) (int, error) {
			n++
			return n, nil
		}

		Resolve(ctx, store, MissionStatement, false, compute) //nolint:errcheck
		got, cached, err := Resolve(ctx, store, MissionStatement, true, compute)
		if err != nil || cached || got != 2 {
			t.Errorf("expected recomputed 2, got %d cached=%v err=%v", got, cached, err)
		}
		stored, _ := Load[int](ctx, store, MissionStatement)
		if stored != 2 {
			t.Errorf("expected stored 2, got %d", stored)
		}
	})

	t.Run("failed compute saves nothing", func(t *testing.T) {
		t.Parallel()

		store, _ := NewDirStore(t.TempDir(), "org")
		ctx := context.Background()
		boom := errors.New("boom")

		_, _, err := Resolve(ctx, store, OutputReports, false, func(context.Context) (string, error) {
			return "", boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected compute error, got %v", err)
		}
		if ok, _ := store.Exists(ctx, OutputReports); ok {
			t.Error("nothing should be saved after a failed compute")
		}
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		t.Parallel()

		store, _ := NewDirStore(t.TempDir(), "org")
		ctx := context.Background()
		store.Save(ctx, WebsiteAudit, []byte("{not json")) //nolint:errcheck

		_, _, err := Resolve(ctx, store, WebsiteAudit, false, func(context.Context) (map[string]string, error) {
			t.Error("compute must not run for a present snapshot")
			return nil, nil
		})
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
		if !strings.Contains(err.Error(), WebsiteAudit) {
			t.Errorf("error should name the snapshot: %v", err)
		}
	})
}

func TestNewS3Store(t *testing.T) {
	t.Parallel()

	t.Run("requires settings", func(t *testing.T) {
		t.Parallel()

		if _, err := NewS3Store(config.S3Config{Endpoint: "localhost:9000"}, "org"); !errors.Is(err, ErrS3Config) {
			t.Errorf("expected ErrS3Config, got %v", err)
		}
	})

	t.Run("location", func(t *testing.T) {
		t.Parallel()

		store, err := NewS3Store(config.S3Config{
			Endpoint:  "localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio123",
			Bucket:    "audits",
		}, "helping-hands")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "s3://audits/helping-hands/reports/Staff_report.json"
		if got := store.Location(ReportName("Staff")); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("directory store by default", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.OutputDir = t.TempDir()

		store, err := Open(cfg, "acme")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*DirStore); !ok {
			t.Errorf("expected *DirStore, got %T", store)
		}
	})

	t.Run("s3 store when a bucket is set", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.S3 = config.S3Config{
			Endpoint:  "localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio123",
			Bucket:    "audits",
		}

		store, err := Open(cfg, "acme")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.(*S3Store); !ok {
			t.Errorf("expected *S3Store, got %T", store)
		}
	})
}
