package aoc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// PasteClient uploads the full leaderboard table to a paste service so
// the Discord message can link to it instead of exceeding embed limits.
type PasteClient struct {
	httpClient     *http.Client
	uploadURL      string
	rawURLTemplate string
}

// NewPasteClient creates an uploader. rawURLTemplate must contain the
// placeholder "{key}", which is replaced with the key the paste service
// returns.
func NewPasteClient(uploadURL, rawURLTemplate string) *PasteClient {
	return &PasteClient{
		httpClient:     &http.Client{},
		uploadURL:      uploadURL,
		rawURLTemplate: rawURLTemplate,
	}
}

// Upload posts the table as plain text and returns the raw-content URL.
// Upload failures are not fatal to the refresh pipeline: they are logged
// and an empty string is returned instead.
func (p *PasteClient) Upload(ctx context.Context, content string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, strings.NewReader(content))
	if err != nil {
		slog.Error("Failed to build paste upload request",
			slog.String("type", "http"),
			slog.Any("error", err),
		)
		return ""
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to upload full leaderboard to paste service",
			slog.String("type", "http"),
			slog.Any("error", err),
		)
		return ""
	}
	defer resp.Body.Close()

	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Error("Failed to decode paste service response",
			slog.String("type", "http"),
			slog.Int("status", resp.StatusCode),
			slog.Any("error", err),
		)
		return ""
	}
	if body.Key == "" {
		slog.Error("Unexpected response shape from paste service",
			slog.String("type", "http"),
			slog.Int("status", resp.StatusCode),
		)
		return ""
	}

	return strings.ReplaceAll(p.rawURLTemplate, "{key}", body.Key)
}
