package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"icetrace/internal/blob"
	"icetrace/internal/infra/persistence/memory"
)

// SnapshotPrefix is the blob key prefix under which archives are written.
const SnapshotPrefix = "snapshots/"

const snapshotContentType = "application/json"

// ErrArchiveUnsupported is returned when the service store cannot export or import snapshots.
var ErrArchiveUnsupported = errors.New("store does not support snapshots")

type snapshotExporter interface {
	ExportState() memory.Snapshot
}

type snapshotImporter interface {
	ImportState(memory.Snapshot) error
}

// durable stores persist the imported state before returning
type snapshotRestorer interface {
	Restore(ctx context.Context, snapshot memory.Snapshot) error
}

// Archiver copies registry snapshots to and from a blob store.
type Archiver struct {
	svc   *Service
	blobs blob.Store
}

// NewArchiver returns an archiver for svc writing to blobs.
func NewArchiver(svc *Service, blobs blob.Store) *Archiver {
	return &Archiver{svc: svc, blobs: blobs}
}

// Archive writes the current registry state as a JSON blob keyed by the
// service clock and returns the stored blob info.
func (a *Archiver) Archive(ctx context.Context) (blob.Info, error) {
	var info blob.Info
	_, err := a.svc.observe(ctx, "archive_snapshot", func(ctx context.Context) error {
		exporter, ok := a.svc.store.(snapshotExporter)
		if !ok {
			return ErrArchiveUnsupported
		}
		snapshot := exporter.ExportState()
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		head := ""
		if n := len(snapshot.Journal); n > 0 {
			head = snapshot.Journal[n-1].Digest
		}
		key := SnapshotPrefix + a.svc.clock.Now().UTC().Format("20060102T150405.000000000Z") + ".json"
		info, err = a.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: snapshotContentType,
			Metadata: map[string]string{
				"journal-entries": strconv.Itoa(len(snapshot.Journal)),
				"journal-head":    head,
			},
		})
		if err != nil {
			return fmt.Errorf("put snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return blob.Info{}, err
	}
	a.svc.logger.Info("snapshot archived", "key", info.Key, "size", info.Size, "driver", a.blobs.Driver())
	return info, nil
}

// Snapshots lists archived snapshots oldest first.
func (a *Archiver) Snapshots(ctx context.Context) ([]blob.Info, error) {
	infos, err := a.blobs.List(ctx, SnapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// Restore replaces the registry state with the snapshot stored at key. The
// snapshot is fully verified before anything is replaced.
func (a *Archiver) Restore(ctx context.Context, key string) error {
	_, err := a.svc.observe(ctx, "restore_snapshot", func(ctx context.Context) error {
		_, rc, err := a.blobs.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		defer rc.Close()
		payload, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		var snapshot memory.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", key, err)
		}
		switch store := a.svc.store.(type) {
		case snapshotRestorer:
			return store.Restore(ctx, snapshot)
		case snapshotImporter:
			return store.ImportState(snapshot)
		default:
			return ErrArchiveUnsupported
		}
	})
	if err != nil {
		return err
	}
	a.svc.logger.Info("snapshot restored", "key", key)
	return nil
}
