package mount

import (
	"context"
	"fmt"
	"net/http"
)

// fstabPath is where a tenant's mount table lives in its repository.
const fstabPath = "/fstab.yml"

// Source loads the mount table for one tenant repository.
type Source interface {
	Table(ctx context.Context, owner, repo, ref string) (*Table, error)
}

// Static serves a fixed table; used by tests and single-tenant setups.
type Static struct {
	T *Table
}

func (s Static) Table(ctx context.Context, owner, repo, ref string) (*Table, error) {
	return s.T, nil
}

// fstabFetcher is the slice of the fetch client FetchSource needs.
type fstabFetcher interface {
	FetchRaw(ctx context.Context, owner, repo, ref, path string) (int, []byte, error)
}

// FetchSource loads fstab.yml from the repository root through the upstream
// content service.
type FetchSource struct {
	Fetcher fstabFetcher
}

func (s FetchSource) Table(ctx context.Context, owner, repo, ref string) (*Table, error) {
	status, body, err := s.Fetcher.FetchRaw(ctx, owner, repo, ref, fstabPath)
	if err != nil {
		return nil, fmt.Errorf("load fstab for %s/%s@%s: %w", owner, repo, ref, err)
	}
	if status == http.StatusNotFound {
		// No fstab means nothing is mounted.
		return &Table{}, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("load fstab for %s/%s@%s: upstream status %d", owner, repo, ref, status)
	}
	return ParseTable(body)
}
