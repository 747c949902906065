package mount

import (
	"context"
	"net/http"
	"testing"
)

const fstab = `
mounts:
  - path: /mnt
    type: sharepoint
    url: https://acme.sharepoint.com/sites/docs
  - path: /mnt/deep
    type: onedrive
    url: https://onedrive.live.com/f/abc
`

func TestParseTable(t *testing.T) {
	tbl, err := ParseTable([]byte(fstab))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(tbl.Mounts) != 2 {
		t.Fatalf("mounts=%d; want 2", len(tbl.Mounts))
	}
	if tbl.Mounts[0].Type != "sharepoint" {
		t.Fatalf("type=%q", tbl.Mounts[0].Type)
	}
}

func TestParseTableRejectsIncomplete(t *testing.T) {
	if _, err := ParseTable([]byte("mounts:\n  - type: x\n")); err == nil {
		t.Fatalf("expected error for mount without path/url")
	}
}

func TestResolve(t *testing.T) {
	tbl, err := ParseTable([]byte(fstab))
	if err != nil {
		t.Fatal(err)
	}

	m, ok := tbl.Resolve("/mnt/example-post.md")
	if !ok {
		t.Fatalf("no match")
	}
	if m.Mount.Type != "sharepoint" || m.RelPath != "example-post.md" {
		t.Fatalf("match=%+v", m)
	}

	// Longest prefix wins.
	m, ok = tbl.Resolve("/mnt/deep/file.md")
	if !ok || m.Mount.Type != "onedrive" || m.RelPath != "file.md" {
		t.Fatalf("match=%+v ok=%v", m, ok)
	}

	// Prefix must end on a segment boundary.
	if _, ok := tbl.Resolve("/mntx/file.md"); ok {
		t.Fatalf("/mntx matched /mnt")
	}
	if _, ok := tbl.Resolve("/elsewhere/file.md"); ok {
		t.Fatalf("unexpected match")
	}
}

type fakeFstabFetcher struct {
	status int
	body   []byte
	err    error
}

func (f fakeFstabFetcher) FetchRaw(ctx context.Context, owner, repo, ref, path string) (int, []byte, error) {
	if path != "/fstab.yml" {
		return http.StatusNotFound, nil, nil
	}
	return f.status, f.body, f.err
}

func TestFetchSource(t *testing.T) {
	src := FetchSource{Fetcher: fakeFstabFetcher{status: http.StatusOK, body: []byte(fstab)}}
	tbl, err := src.Table(context.Background(), "foo", "bar", "baz")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(tbl.Mounts) != 2 {
		t.Fatalf("mounts=%d", len(tbl.Mounts))
	}
}

func TestFetchSourceMissingFstab(t *testing.T) {
	src := FetchSource{Fetcher: fakeFstabFetcher{status: http.StatusNotFound}}
	tbl, err := src.Table(context.Background(), "foo", "bar", "baz")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(tbl.Mounts) != 0 {
		t.Fatalf("expected empty table")
	}
}

func TestFetchSourceUpstreamFailure(t *testing.T) {
	src := FetchSource{Fetcher: fakeFstabFetcher{status: http.StatusBadGateway}}
	if _, err := src.Table(context.Background(), "foo", "bar", "baz"); err == nil {
		t.Fatalf("expected error for upstream failure")
	}
}
