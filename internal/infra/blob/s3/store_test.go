package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"printstack/internal/blob/core"
)

func TestMockPutGetRoundTrip(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()

	artifact, err := s.Put(ctx, "dev/snapshot.json", strings.NewReader(`{"ok":true}`), core.PutOptions{
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if artifact.Key != "dev/snapshot.json" || artifact.Size != 11 {
		t.Fatalf("artifact = %+v", artifact)
	}
	if artifact.Checksum != "mock-etag" {
		t.Fatalf("checksum = %q", artifact.Checksum)
	}

	got, rc, err := s.Get(ctx, "dev/snapshot.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"ok":true}` || got.ContentType != "application/json" {
		t.Fatalf("data = %q artifact = %+v", data, got)
	}
}

func TestMockPutIsCreateOnly(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	if _, err := s.Put(ctx, "dev/a.json", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	_, err := s.Put(ctx, "dev/a.json", strings.NewReader("2"), core.PutOptions{})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("err = %v", err)
	}
}

func TestMockHeadDeleteList(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	for _, key := range []string{"dev/2.json", "dev/1.json", "prod/1.json"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	head, err := s.Head(ctx, "dev/1.json")
	if err != nil || head.Size != 1 {
		t.Fatalf("head = %+v err=%v", head, err)
	}
	if _, err := s.Head(ctx, "missing"); err == nil {
		t.Fatal("missing head should fail")
	}

	dev, err := s.List(ctx, "dev/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dev) != 2 || dev[0].Key != "dev/1.json" || dev[1].Key != "dev/2.json" {
		t.Fatalf("dev list = %+v", dev)
	}

	if removed, err := s.Delete(ctx, "dev/1.json"); err != nil || !removed {
		t.Fatalf("delete = %v err=%v", removed, err)
	}
	if _, err := s.Head(ctx, "dev/1.json"); err == nil {
		t.Fatal("head after delete should fail")
	}
}

func TestMockPresign(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()

	url, err := s.PresignURL(ctx, "dev/a.json", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "dev/a.json") || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("url = %q", url)
	}
	if _, err := s.PresignURL(ctx, "dev/a.json", core.SignedURLOptions{Method: "DELETE"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("missing bucket accepted")
	}
}
