// Package handler dispatches document update and publish requests: it
// resolves the tenant mount, opens the per-tenant bucket store, and maps
// every internal outcome to a protocol status.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/yourorg/doc-publisher/internal/bucketstore"
	"github.com/yourorg/doc-publisher/internal/fetch"
	"github.com/yourorg/doc-publisher/internal/metrics"
	"github.com/yourorg/doc-publisher/internal/mount"
)

const (
	ActionUpdate  = "update"
	ActionPublish = "publish"

	// PreviewPrefix and LivePrefix are the two namespaces publish moves
	// content between.
	PreviewPrefix = "preview"
	LivePrefix    = "live"

	lastModifiedKey = "x-source-last-modified"
)

// Params are the validated inbound request parameters.
type Params struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
	// Prefix is the namespace update writes into; defaults to live.
	Prefix string
	// Action defaults to update.
	Action          string
	UseLastModified bool
	RequestID       string
}

// Result is the protocol-level outcome.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Store is the slice of the bucket store the dispatcher drives.
type Store interface {
	Metadata(ctx context.Context, key string) (map[string]string, error)
	Store(ctx context.Context, key string, body []byte, headers http.Header) error
	Copy(ctx context.Context, src, dst string) error
	Close()
}

// StoreOpener builds a store client for one bucket. A fresh client is opened
// per invocation and closed by the handler.
type StoreOpener func(ctx context.Context, bucket, mountURL string) (Store, error)

// Fetcher is the upstream retrieval collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, r fetch.Request) (*fetch.Response, error)
}

type Handler struct {
	fetcher   Fetcher
	mounts    mount.Source
	openStore StoreOpener
	log       *zap.Logger
}

func New(fetcher Fetcher, mounts mount.Source, openStore StoreOpener, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{fetcher: fetcher, mounts: mounts, openStore: openStore, log: log}
}

// Handle runs one invocation. All failures come back as a Result; the store
// client is closed on every path.
func (h *Handler) Handle(ctx context.Context, p Params) Result {
	if p.Owner == "" || p.Repo == "" || p.Ref == "" || p.Path == "" {
		return badRequest("owner, repo, ref and path are required")
	}
	if p.Prefix == "" {
		p.Prefix = LivePrefix
	}
	if p.Action == "" {
		p.Action = ActionUpdate
	}
	if p.Action != ActionUpdate && p.Action != ActionPublish {
		return badRequest(fmt.Sprintf("unknown action %q", p.Action))
	}

	tbl, err := h.mounts.Table(ctx, p.Owner, p.Repo, p.Ref)
	if err != nil {
		h.log.Error("mount table load failed", zap.String("requestId", p.RequestID), zap.Error(err))
		return internalError(err)
	}
	m, ok := tbl.Resolve(p.Path)
	if !ok {
		return badRequest(fmt.Sprintf("no mount matches path %s", p.Path))
	}

	bucket := bucketstore.BucketName(m.Mount.URL)
	st, err := h.openStore(ctx, bucket, m.Mount.URL)
	if err != nil {
		h.log.Error("store client open failed", zap.String("requestId", p.RequestID),
			zap.String("bucket", bucket), zap.Error(err))
		return internalError(err)
	}
	defer st.Close()

	log := h.log.With(zap.String("requestId", p.RequestID), zap.String("bucket", bucket),
		zap.String("path", p.Path))
	switch p.Action {
	case ActionPublish:
		return h.publish(ctx, st, p, log)
	default:
		return h.update(ctx, st, p, m, log)
	}
}

func (h *Handler) update(ctx context.Context, st Store, p Params, m *mount.Match, log *zap.Logger) Result {
	key := p.Prefix + p.Path

	req := fetch.Request{
		Owner: p.Owner, Repo: p.Repo, Ref: p.Ref, Path: p.Path,
		Mount: m, RequestID: p.RequestID,
	}
	if p.UseLastModified {
		md, err := st.Metadata(ctx, key)
		switch {
		case err == nil:
			req.LastModified = md[lastModifiedKey]
		case errors.Is(err, bucketstore.ErrNotFound):
			// Nothing stored yet; unconditional fetch.
		default:
			log.Error("metadata read failed", zap.String("key", key), zap.Error(err))
			return internalError(err)
		}
	}

	resp, err := h.fetcher.Fetch(ctx, req)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return internalError(err)
	}
	switch {
	case resp.Status == http.StatusNotModified:
		return Result{Status: http.StatusNotModified}
	case resp.Status >= 200 && resp.Status < 300:
		if err := st.Store(ctx, key, resp.Body, resp.Header); err != nil {
			metrics.StoreFailures.Inc()
			log.Error("store failed", zap.String("key", key), zap.Error(err))
			return internalError(err)
		}
		metrics.Updates.Inc()
		log.Info("document updated", zap.String("key", key), zap.Int("bytes", len(resp.Body)))
		return Result{Status: http.StatusOK}
	default:
		// Fetch failures pass through unchanged; nothing is stored.
		metrics.FetchFailures.Inc()
		return Result{Status: resp.Status, Header: resp.Header, Body: resp.Body}
	}
}

func (h *Handler) publish(ctx context.Context, st Store, p Params, log *zap.Logger) Result {
	src := PreviewPrefix + p.Path
	dst := LivePrefix + p.Path
	err := st.Copy(ctx, src, dst)
	switch {
	case err == nil:
		metrics.Publishes.Inc()
		log.Info("document published", zap.String("src", src), zap.String("dst", dst))
		return Result{Status: http.StatusOK}
	case errors.Is(err, bucketstore.ErrNotFound):
		return errorResult(http.StatusNotFound, fmt.Sprintf("no preview content at %s", p.Path))
	default:
		metrics.StoreFailures.Inc()
		log.Error("publish copy failed", zap.String("src", src), zap.Error(err))
		return internalError(err)
	}
}

func badRequest(msg string) Result {
	return errorResult(http.StatusBadRequest, msg)
}

func internalError(err error) Result {
	return errorResult(http.StatusInternalServerError, err.Error())
}

func errorResult(status int, msg string) Result {
	h := http.Header{}
	h.Set("X-Error", msg)
	return Result{Status: status, Header: h}
}
