package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeUploader struct {
	mu    sync.Mutex
	fails map[string]int
	keys  []string
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[key] > 0 {
		f.fails[key]--
		return errors.New("transient")
	}
	f.keys = append(f.keys, key)
	return nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMirror_EnqueueDirRetriesAndOrdersMetaLast(t *testing.T) {
	data := t.TempDir()
	run := filepath.Join(data, "runs", "r1")
	writeFile(t, filepath.Join(run, "meta.json"), "{}")
	writeFile(t, filepath.Join(run, "stage_00.snap.zst"), "a")
	writeFile(t, filepath.Join(run, "stage_01.snap.zst"), "b")

	up := &fakeUploader{fails: map[string]int{"arch/runs/r1/stage_01.snap.zst": 2}}
	m := New(up, Config{DataDir: data, Prefix: "/arch/", Workers: 1, Backoff: func(int) time.Duration { return 0 }})
	if err := m.EnqueueDir(run); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	m.Close()

	want := []string{"arch/runs/r1/stage_00.snap.zst", "arch/runs/r1/stage_01.snap.zst", "arch/runs/r1/meta.json"}
	if strings.Join(up.keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys=%v want %v", up.keys, want)
	}
	s := m.Stats()
	if s.EnqueuedTotal != 3 || s.UploadedTotal != 3 || s.FailedTotal != 0 || s.DroppedTotal != 0 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestMirror_GivesUpAfterAttempts(t *testing.T) {
	data := t.TempDir()
	p := filepath.Join(data, "x.bin")
	writeFile(t, p, "x")
	up := &fakeUploader{fails: map[string]int{"x.bin": 10}}
	m := New(up, Config{DataDir: data, Attempts: 2, Backoff: func(int) time.Duration { return 0 }})
	m.Enqueue(p)
	m.Close()
	if s := m.Stats(); s.FailedTotal != 1 || s.UploadedTotal != 0 || s.LastErrorUnix == 0 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestMirror_KeyOutsideDataDir(t *testing.T) {
	m := New(&fakeUploader{}, Config{DataDir: t.TempDir()})
	defer m.Close()
	if _, err := m.Key(filepath.Join(os.TempDir(), "elsewhere", "f")); err == nil {
		t.Fatalf("expected error for a path outside the data dir")
	}
}

func TestS3_PutFileSigns(t *testing.T) {
	body := "snapshot bytes"
	sum := sha256.Sum256([]byte(body))
	var gotPath, gotAuth, gotHash, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotHash = r.Header.Get("x-amz-content-sha256")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewS3(S3Config{Endpoint: srv.URL, Bucket: "runs", AccessKey: "AK", SecretKey: "SK"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	p := filepath.Join(t.TempDir(), "stage 00.snap.zst")
	writeFile(t, p, body)

	if err := c.PutFile(context.Background(), "/runs/r1/stage 00.snap.zst", p); err != nil {
		t.Fatalf("put: %v", err)
	}
	if gotPath != "/runs/runs/r1/stage 00.snap.zst" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotBody != body || gotHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("body=%q hash=%q", gotBody, gotHash)
	}
	prefix := "AWS4-HMAC-SHA256 Credential=AK/20260102/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature="
	if !strings.HasPrefix(gotAuth, prefix) || len(gotAuth) != len(prefix)+64 {
		t.Fatalf("auth=%q", gotAuth)
	}
}

func TestS3_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, err := NewS3(S3Config{Endpoint: srv.URL, Bucket: "runs", AccessKey: "AK", SecretKey: "SK"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p := filepath.Join(t.TempDir(), "f")
	writeFile(t, p, "x")
	err = c.PutFile(context.Background(), "f", p)
	if err == nil || !strings.Contains(err.Error(), "status=403") || !strings.Contains(err.Error(), "AccessDenied") {
		t.Fatalf("err=%v", err)
	}
}

func TestNewS3_RequiresCredentials(t *testing.T) {
	if _, err := NewS3(S3Config{Endpoint: "r2.example", Bucket: "b"}); err == nil {
		t.Fatalf("expected error")
	}
}
