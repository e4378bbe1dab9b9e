package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Repo identifies a repository as "owner/name".
type Repo struct {
	Owner string
	Name  string
}

func (repo Repo) String() string { return repo.Owner + "/" + repo.Name }

func (repo Repo) path() string {
	return "/repos/" + url.PathEscape(repo.Owner) + "/" + url.PathEscape(repo.Name)
}

// Release is the subset of a release object this tool reads.
type Release struct {
	ID        int64   `json:"id"`
	TagName   string  `json:"tag_name"`
	Name      string  `json:"name"`
	Body      string  `json:"body"`
	Draft     bool    `json:"draft"`
	HTMLURL   string  `json:"html_url"`
	UploadURL string  `json:"upload_url"`
	Assets    []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	State       string    `json:"state"` // "uploaded" or "starter" (incomplete upload)
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"` // "sha256:<hex>" when the host reports it
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	DownloadURL string    `json:"browser_download_url"`
}

// Upload describes a file to stream as a new release asset. Open is called
// once per attempt so a retried upload starts from the beginning.
type Upload struct {
	Name        string
	Label       string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// GetReleaseByTag fetches a release, including its assets and notes body,
// by tag name.
func (client *Client) GetReleaseByTag(ctx context.Context, repo Repo, tag string) (*Release, error) {
	var release Release
	path := repo.path() + "/releases/tags/" + url.PathEscape(tag)
	if err := client.apiCall(ctx, http.MethodGet, path, nil, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// GetRelease fetches a release by id.
func (client *Client) GetRelease(ctx context.Context, repo Repo, releaseID int64) (*Release, error) {
	var release Release
	path := fmt.Sprintf("%s/releases/%d", repo.path(), releaseID)
	if err := client.apiCall(ctx, http.MethodGet, path, nil, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// UploadReleaseAsset streams upload to the release as a new asset and
// returns the created asset.
func (client *Client) UploadReleaseAsset(ctx context.Context, repo Repo, releaseID int64, upload Upload) (*Asset, error) {
	if upload.Open == nil {
		return nil, fmt.Errorf("github: upload %q has no content", upload.Name)
	}

	query := url.Values{}
	query.Set("name", upload.Name)
	if upload.Label != "" {
		query.Set("label", upload.Label)
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req := &request{
		method:        http.MethodPost,
		url:           fmt.Sprintf("%s%s/releases/%d/assets?%s", client.uploadURL, repo.path(), releaseID, query.Encode()),
		body:          upload.Open,
		contentType:   contentType,
		contentLength: upload.Size,
		timeout:       client.uploadTimeout,
	}

	resp, err := client.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var asset Asset
	if err := json.Unmarshal(resp.body, &asset); err != nil {
		return nil, fmt.Errorf("github: decoding upload response: %w", err)
	}
	if asset.ID == 0 {
		return nil, fmt.Errorf("github: upload of %q returned no asset id", upload.Name)
	}
	return &asset, nil
}

// RenameReleaseAsset changes the name of an existing asset.
func (client *Client) RenameReleaseAsset(ctx context.Context, repo Repo, assetID int64, name string) (*Asset, error) {
	var asset Asset
	path := fmt.Sprintf("%s/releases/assets/%d", repo.path(), assetID)
	if err := client.apiCall(ctx, http.MethodPatch, path, map[string]string{"name": name}, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// DeleteReleaseAsset removes an asset. The host answers 204 on success.
func (client *Client) DeleteReleaseAsset(ctx context.Context, repo Repo, assetID int64) error {
	path := fmt.Sprintf("%s/releases/assets/%d", repo.path(), assetID)
	return client.apiCall(ctx, http.MethodDelete, path, nil, nil)
}

// UpdateReleaseBody replaces the release notes text.
func (client *Client) UpdateReleaseBody(ctx context.Context, repo Repo, releaseID int64, body string) (*Release, error) {
	var release Release
	path := fmt.Sprintf("%s/releases/%d", repo.path(), releaseID)
	if err := client.apiCall(ctx, http.MethodPatch, path, map[string]string{"body": body}, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// DownloadURLFor returns the public download URL of a release asset.
func (client *Client) DownloadURLFor(repo Repo, tag, name string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s",
		client.downloadURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(tag), url.PathEscape(name))
}

// ProbeDownload issues an unauthenticated HEAD against the public download
// URL of an asset and returns the status code without following redirects.
// The host answers 302 (to storage) when the asset exists. Only network
// failures are returned as errors.
func (client *Client) ProbeDownload(ctx context.Context, repo Repo, tag, name string) (int, error) {
	req := &request{
		method:    http.MethodHead,
		url:       client.DownloadURLFor(repo, tag, name),
		timeout:   client.requestTimeout,
		anonymous: true,
		anyStatus: true,
	}
	resp, err := client.do(ctx, req)
	if err != nil {
		return 0, err
	}
	return resp.statusCode, nil
}
