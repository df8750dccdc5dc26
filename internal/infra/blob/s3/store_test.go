package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"icetrace/internal/blob/core"
)

func TestMockStoreBasicFlow(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if store.Driver() != core.DriverS3 || store.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected store identity %s/%s", store.Driver(), store.Bucket())
	}
	info, err := store.Put(ctx, "snapshots/1.json", bytes.NewReader([]byte(`{"ok":true}`)), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"records": "4"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "snapshots/1.json" || info.Size != 11 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "snapshots/1.json", bytes.NewReader([]byte("again")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := store.Get(ctx, "snapshots/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", body)
	}
	if got.Metadata["records"] != "4" {
		t.Fatalf("expected metadata round trip, got %+v", got.Metadata)
	}
	if ok, err := store.Delete(ctx, "snapshots/1.json"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "snapshots/1.json"); err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
}

func TestMockStoreMissingKey(t *testing.T) {
	store := NewMockForTests()
	if _, _, err := store.Get(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMockStoreListPaginates(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("snapshots/%03d.json", 4-i)
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if _, err := store.Put(ctx, "misc.txt", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put misc: %v", err)
	}
	list, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 keys across pages, got %d", len(list))
	}
	for i, info := range list {
		if want := fmt.Sprintf("snapshots/%03d.json", i); info.Key != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, info.Key)
		}
	}
	empty, err := store.List(ctx, "none/")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v %+v", err, empty)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	store, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s", Endpoint: "http://minio:9000", PathStyle: true})
	if err != nil || store.Bucket() != "b" {
		t.Fatalf("New: %v", err)
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := "5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	out, err := decodeAWSChunked([]byte(framed))
	if err != nil || string(out) != "hello world" {
		t.Fatalf("decode: %q %v", out, err)
	}
	if _, err := decodeAWSChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected size parse error")
	}
	if _, err := decodeAWSChunked([]byte("5\r\nhi")); err == nil {
		t.Fatalf("expected short body error")
	}
}

func TestMockBucketUnsupportedMethod(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, err := newMockBucket().RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %v %v", resp, err)
	}
}
