// Package release reads the current state of a release: its id, the
// assets attached to it, and its notes text. Nothing is cached; every call
// goes to the host so decisions are made on fresh state.
package release

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ruby/setup-msys2-gcc/internal/github"
)

// API is the subset of the transport the reader needs.
type API interface {
	GetReleaseByTag(ctx context.Context, repo github.Repo, tag string) (*github.Release, error)
	GetRelease(ctx context.Context, repo github.Repo, releaseID int64) (*github.Release, error)
}

// Ref identifies the release assets live under. It is resolved once per
// run and does not change afterwards.
type Ref struct {
	Tag string
	ID  int64
}

// Asset is one file attached to a release.
type Asset struct {
	ID         int64
	Name       string
	UploadedAt time.Time
	Size       int64
	Digest     string
	State      string
}

// Complete reports whether the host finished receiving the asset.
func (a Asset) Complete() bool {
	return a.State == "" || a.State == "uploaded"
}

// NotFoundError is returned when the release tag does not resolve.
type NotFoundError struct {
	Tag string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("release %q not found", e.Tag)
}

// Reader fetches release state for one repository.
type Reader struct {
	api  API
	repo github.Repo
}

// NewReader returns a Reader for repo.
func NewReader(api API, repo github.Repo) *Reader {
	return &Reader{api: api, repo: repo}
}

// Repo returns the repository the reader is bound to.
func (r *Reader) Repo() github.Repo { return r.repo }

// Lookup resolves tag to a Ref.
func (r *Reader) Lookup(ctx context.Context, tag string) (Ref, error) {
	rel, err := r.api.GetReleaseByTag(ctx, r.repo, tag)
	if err != nil {
		if github.IsNotFound(err) {
			return Ref{}, &NotFoundError{Tag: tag}
		}
		return Ref{}, fmt.Errorf("looking up release %q: %w", tag, err)
	}
	return Ref{Tag: tag, ID: rel.ID}, nil
}

// Assets returns every asset currently attached to the release, sorted by
// name.
func (r *Reader) Assets(ctx context.Context, ref Ref) ([]Asset, error) {
	rel, err := r.get(ctx, ref)
	if err != nil {
		return nil, err
	}
	assets := make([]Asset, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		uploaded := a.UpdatedAt
		if uploaded.IsZero() {
			uploaded = a.CreatedAt
		}
		assets = append(assets, Asset{
			ID:         a.ID,
			Name:       a.Name,
			UploadedAt: uploaded,
			Size:       a.Size,
			Digest:     a.Digest,
			State:      a.State,
		})
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

// Notes returns the current release notes text.
func (r *Reader) Notes(ctx context.Context, ref Ref) (string, error) {
	rel, err := r.get(ctx, ref)
	if err != nil {
		return "", err
	}
	return rel.Body, nil
}

func (r *Reader) get(ctx context.Context, ref Ref) (*github.Release, error) {
	rel, err := r.api.GetRelease(ctx, r.repo, ref.ID)
	if err != nil {
		if github.IsNotFound(err) {
			return nil, &NotFoundError{Tag: ref.Tag}
		}
		return nil, fmt.Errorf("reading release %q: %w", ref.Tag, err)
	}
	return rel, nil
}

// Find returns the asset with the given name.
func Find(assets []Asset, name string) (Asset, bool) {
	for _, a := range assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}
