// Package hosts normalizes raw GitHub repository records into canonical
// host entities and persists them with upsert-by-full-name semantics.
package hosts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMissingIdentity indicates a raw record without the owner login or
// repository name needed to derive the full name.
var ErrMissingIdentity = errors.New("raw record missing owner or name")

// Host is a normalized GitHub repository record. FullName is the unique
// key; it is always derived from Owner and Name at normalization time,
// regardless of what the raw payload's own full_name field says.
type Host struct {
	ID          int64
	Owner       string
	Name        string
	FullName    string
	Description string
	URL         string
	CloneURL    string
	SSHURL      string
	Language    string

	Stars int
	Forks int

	// Origin timestamps are stored as reported; they are opaque to this
	// layer and may be empty for repositories that never saw a push.
	CreatedAt string
	UpdatedAt string
	PushedAt  string

	// CachedAt is when the host was last stored locally.
	CachedAt time.Time
}

// Fresh reports whether the host's local copy is within the given age
// window. Freshness is a caller policy; the store never enforces it.
func (h *Host) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(h.CachedAt) < maxAge
}

// rawRepo is the subset of the GitHub repository payload this layer reads.
type rawRepo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	CloneURL    string `json:"clone_url"`
	SSHURL      string `json:"ssh_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	PushedAt    string `json:"pushed_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Normalize converts a raw repository payload into a Host. Every
// non-identifying field defaults to its zero value when absent; only a
// missing owner login or repository name is an error.
func Normalize(raw json.RawMessage) (*Host, error) {
	var repo rawRepo
	if err := json.Unmarshal(raw, &repo); err != nil {
		return nil, fmt.Errorf("decode raw record: %w", err)
	}

	if repo.Owner.Login == "" || repo.Name == "" {
		return nil, ErrMissingIdentity
	}

	return &Host{
		Owner:       repo.Owner.Login,
		Name:        repo.Name,
		FullName:    repo.Owner.Login + "/" + repo.Name,
		Description: repo.Description,
		URL:         repo.HTMLURL,
		CloneURL:    repo.CloneURL,
		SSHURL:      repo.SSHURL,
		Language:    repo.Language,
		Stars:       repo.Stars,
		Forks:       repo.Forks,
		CreatedAt:   repo.CreatedAt,
		UpdatedAt:   repo.UpdatedAt,
		PushedAt:    repo.PushedAt,
	}, nil
}
