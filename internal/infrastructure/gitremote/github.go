package gitremote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// AccessState classifies reachability of a repository for a credential.
type AccessState string

const (
	AccessOK              AccessState = "ok"
	AccessNotFound        AccessState = "not-found"
	AccessUnauthenticated AccessState = "unauthenticated"
	AccessForbidden       AccessState = "forbidden"
)

// CredentialCheck is the outcome of validating a token against the
// identity endpoint.
type CredentialCheck struct {
	Valid   bool
	Login   string
	Message string
}

// RepositoryAccess is the outcome of probing one repository.
type RepositoryAccess struct {
	State   AccessState
	Private bool
	Message string
}

// APIClient talks to the GitHub REST API for credential validation and
// repository access probing.
type APIClient struct {
	baseURL string
	client  *http.Client
	logger  hclog.Logger
}

// NewAPIClient creates a GitHub API client against the public endpoint.
func NewAPIClient(logger hclog.Logger) *APIClient {
	return &APIClient{
		baseURL: "https://api.github.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Named("github"),
	}
}

// NewAPIClientWithBase is used by tests to point at a stub server.
func NewAPIClientWithBase(baseURL string, logger hclog.Logger) *APIClient {
	c := NewAPIClient(logger)
	c.baseURL = baseURL
	return c
}

func (a *APIClient) get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %s", Redact(err.Error(), token))
	}
	return resp, nil
}

// ValidateCredential calls the identity endpoint. Success yields the
// authenticated principal's login handle.
func (a *APIClient) ValidateCredential(ctx context.Context, token string) (CredentialCheck, error) {
	if token == "" {
		return CredentialCheck{Message: "no credential supplied"}, nil
	}
	resp, err := a.get(ctx, "/user", token)
	if err != nil {
		return CredentialCheck{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Login string `json:"login"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return CredentialCheck{}, fmt.Errorf("failed to decode identity response: %w", err)
		}
		return CredentialCheck{Valid: true, Login: body.Login}, nil
	case http.StatusUnauthorized:
		return CredentialCheck{Message: "credential rejected by the remote service"}, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return CredentialCheck{}, fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}
}

// CheckRepositoryAccess determines reachability and visibility of one
// repository for the given credential.
func (a *APIClient) CheckRepositoryAccess(ctx context.Context, token, owner, repo string) (RepositoryAccess, error) {
	resp, err := a.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), token)
	if err != nil {
		return RepositoryAccess{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Private bool `json:"private"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return RepositoryAccess{}, fmt.Errorf("failed to decode repository response: %w", err)
		}
		return RepositoryAccess{State: AccessOK, Private: body.Private}, nil
	case http.StatusNotFound:
		return RepositoryAccess{
			State:   AccessNotFound,
			Message: fmt.Sprintf("repository %s/%s was not found, or the credential cannot see it", owner, repo),
		}, nil
	case http.StatusUnauthorized:
		return RepositoryAccess{
			State:   AccessUnauthenticated,
			Message: "the supplied credential is not valid",
		}, nil
	case http.StatusForbidden:
		return RepositoryAccess{
			State:   AccessForbidden,
			Message: fmt.Sprintf("access to %s/%s is forbidden for this credential", owner, repo),
		}, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return RepositoryAccess{}, fmt.Errorf("repository endpoint returned status %d", resp.StatusCode)
	}
}
