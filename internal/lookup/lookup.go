// Package lookup resolves a player ID to a human-readable profile name over
// a remote service. Resolution is best-effort: callers substitute an empty
// name on any failure and never propagate lookup errors into ingest.
package lookup

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"context"
)

// Resolver resolves a player ID to a display name. An empty name with a nil
// error means the service had no name for the player; that is not an error.
type Resolver interface {
	DisplayName(ctx context.Context, playerID string) (string, error)
}

// Nop is a Resolver that never resolves anything (lookup disabled).
type Nop struct{}

// DisplayName implements Resolver.
func (Nop) DisplayName(ctx context.Context, playerID string) (string, error) {
	return "", nil
}

// DefaultBaseURL is the profile lookup endpoint.
const DefaultBaseURL = "https://steamid.io"

// maxResponseBytes bounds how much profile HTML is read.
const maxResponseBytes = 1 << 20

// nameRe extracts the profile name from the lookup page markup.
var nameRe = regexp.MustCompile(`(?is)name</dt>\s*<dd[^>]*>\s*([^<]+?)\s*</dd>`)

// SteamResolver resolves names by scraping the steamid.io lookup page.
type SteamResolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// SteamOption configures a SteamResolver.
type SteamOption func(*SteamResolver)

// WithBaseURL overrides the lookup endpoint (for testing).
func WithBaseURL(u string) SteamOption {
	return func(r *SteamResolver) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) SteamOption {
	return func(r *SteamResolver) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SteamOption {
	return func(r *SteamResolver) { r.logger = logger }
}

// NewSteamResolver creates a resolver with a bounded request timeout.
func NewSteamResolver(opts ...SteamOption) *SteamResolver {
	r := &SteamResolver{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DisplayName implements Resolver. A non-200 status or an unrecognized page
// yields ("", nil); only transport failures return an error.
func (r *SteamResolver) DisplayName(ctx context.Context, playerID string) (string, error) {
	url := fmt.Sprintf("%s/lookup/%s", r.baseURL, playerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", playerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("profile lookup returned non-OK status",
			"player_id", playerID,
			"status", resp.StatusCode,
		)
		io.Copy(io.Discard, resp.Body)
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read lookup response: %w", err)
	}

	m := nameRe.FindSubmatch(body)
	if m == nil {
		r.logger.Debug("profile name not found in lookup page", "player_id", playerID)
		return "", nil
	}
	return strings.TrimSpace(string(m[1])), nil
}
