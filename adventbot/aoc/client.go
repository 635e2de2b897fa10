package aoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	// DefaultBaseURL is the Advent of Code website root.
	DefaultBaseURL = "https://adventofcode.com"

	requestUserAgent = "AdventBot Discord AoC Event Bot"
)

var (
	// ErrUnexpectedRedirect is returned when the AoC website silently
	// redirects a leaderboard request, which it does when the session
	// cookie has expired, is invalid or was not provided.
	ErrUnexpectedRedirect = errors.New("aoc: unexpected redirect")

	// ErrUnexpectedResponseStatus is returned for any non-200 response.
	ErrUnexpectedResponseStatus = errors.New("aoc: unexpected response status")

	// ErrFetchFailed is returned when the multi-board fetch could not be
	// completed, after the fallback session has been exhausted.
	ErrFetchFailed = errors.New("aoc: fetching leaderboards failed")
)

// credential retry states for one board fetch.
type credentialState int

const (
	statePrimary credentialState = iota
	stateFallback
	stateFailed
)

// Client fetches private leaderboards from the AoC website.
//
// The zero timeout of the underlying transport is left in place on
// purpose: the upstream behavior this client mirrors does not define one.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	year            int
	fallbackSession string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the AoC website root, primarily for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a leaderboard client for one event year. The
// fallback session is tried once whenever a board's own session cookie
// is rejected.
func NewClient(year int, fallbackSession string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			// The AoC website signals an expired session by silently
			// redirecting with a success status. Keeping the redirect
			// response lets us detect that instead of following it.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:         DefaultBaseURL,
		year:            year,
		fallbackSession: fallbackSession,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll fetches every board in order, strictly one at a time so the
// AoC website is never hit with parallel requests. The per-board member
// records are pooled into a single mapping keyed by member id, and
// recordCount is invoked with each board's member count as soon as that
// board has been fetched.
//
// A rejected session cookie triggers one retry with the fallback
// session; any other failure aborts the whole run and the partial pool
// is discarded.
func (c *Client) FetchAll(ctx context.Context, boards []Board, recordCount func(boardID string, count int)) (map[string]RawMember, error) {
	members := make(map[string]RawMember)

	for _, board := range boards {
		session := board.Session
		state := statePrimary

		for state != stateFailed {
			attempt := int(state) + 1
			slog.Info("Fetching leaderboard",
				slog.String("type", "http"),
				slog.String("board", board.ID),
				slog.Int("attempt", attempt),
			)

			boardMembers, err := c.fetchBoard(ctx, board.ID, session)
			if errors.Is(err, ErrUnexpectedRedirect) {
				if state == stateFallback || session == c.fallbackSession {
					slog.Error("Fallback session cookie was rejected",
						slog.String("type", "http"),
						slog.String("board", board.ID),
					)
					state = stateFailed
					continue
				}
				slog.Warn("Session cookie rejected, retrying with fallback",
					slog.String("type", "http"),
					slog.String("board", board.ID),
				)
				session = c.fallbackSession
				state = stateFallback
				continue
			}
			if err != nil {
				// Not a session problem, so a retry will not help.
				return nil, fmt.Errorf("%w: board %s: %v", ErrFetchFailed, board.ID, err)
			}

			if recordCount != nil {
				recordCount(board.ID, len(boardMembers))
			}
			for id, member := range boardMembers {
				members[id] = member
			}
			break
		}
		if state == stateFailed {
			return nil, fmt.Errorf("%w: board %s: fallback session rejected", ErrFetchFailed, board.ID)
		}
	}

	slog.Info("Fetched leaderboard information",
		slog.String("type", "http"),
		slog.Int("participants", len(members)),
	)
	return members, nil
}

// fetchBoard issues a single leaderboard request with the given session
// cookie and returns the board's member records.
func (c *Client) fetchBoard(ctx context.Context, boardID, session string) (map[string]RawMember, error) {
	url := fmt.Sprintf("%s/%d/leaderboard/private/view/%s.json", c.baseURL, c.year, boardID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", requestUserAgent)
	req.AddCookie(&http.Cookie{Name: "session", Value: session})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		slog.Error("Leaderboard request was redirected, check the session cookie",
			slog.String("type", "http"),
			slog.String("board", boardID),
			slog.String("location", resp.Header.Get("Location")),
		)
		return nil, fmt.Errorf("%w: board %s redirected to %s", ErrUnexpectedRedirect, boardID, resp.Header.Get("Location"))
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Unexpected response while fetching leaderboard",
			slog.String("type", "http"),
			slog.String("board", boardID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedResponseStatus, resp.StatusCode)
	}

	var body rawLeaderboard
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return body.Members, nil
}
