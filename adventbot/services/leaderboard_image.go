package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/adventbot/adventbot/adventbot/aoc"
)

// imageEntryLimit caps the rendered table; the full board is linked as
// text anyway and a taller screenshot scales badly on mobile.
const imageEntryLimit = 10

const leaderboardTemplate = `<html><head><style>
body { margin: 0; background: #0f0f23; font-family: "Source Code Pro", monospace; }
#leaderboard-container { display: inline-block; padding: 24px 32px; }
h1 { color: #00cc00; font-size: 20px; margin: 0 0 4px 0; }
.sub { color: #cccccc; font-size: 12px; margin-bottom: 12px; }
table { border-collapse: collapse; color: #cccccc; font-size: 14px; }
td, th { padding: 4px 14px; text-align: left; }
th { color: #009900; border-bottom: 1px solid #333340; }
td.rank { color: #666677; }
td.score { color: #ffff66; text-align: right; }
tr:first-child td { color: #ffffff; }
</style></head><body>
<div id="leaderboard-container">
<h1>Advent of Code {{.Year}}</h1>
<div class="sub">fetched {{.FetchedAt}}</div>
<table>
<tr><th>#</th><th>Name</th><th>Score</th><th>&#11088;</th></tr>
{{range $i, $e := .Entries}}<tr><td class="rank">{{add $i 1}}</td><td>{{$e.Name}}</td><td class="score">{{$e.Score}}</td><td>({{$e.Star1}}, {{$e.Star2}})</td></tr>
{{end}}</table>
</div></body></html>`

type leaderboardImageData struct {
	Year      int
	FetchedAt string
	Entries   []aoc.Entry
}

// LeaderboardImageService renders the top of the leaderboard to a PNG
// through a headless browser.
type LeaderboardImageService struct {
	logger *slog.Logger
	tmpl   *template.Template
}

func NewLeaderboardImageService() *LeaderboardImageService {
	tmpl := template.Must(template.New("leaderboard").Funcs(template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}).Parse(leaderboardTemplate))

	service := &LeaderboardImageService{
		logger: slog.With(slog.String("service", "leaderboard_image")),
		tmpl:   tmpl,
	}
	service.testChromedpAvailability()
	return service
}

func (s *LeaderboardImageService) testChromedpAvailability() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chromedpCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	if err := chromedp.Run(chromedpCtx, chromedp.Navigate("data:text/html,<html><body>test</body></html>")); err != nil {
		s.logger.Error("chromedp not available - image generation will fail",
			slog.String("error", err.Error()))
	}
}

// Generate renders the leading entries to a PNG. Failures degrade the
// leaderboard command to text-only, so callers treat errors as soft.
func (s *LeaderboardImageService) Generate(ctx context.Context, year int, fetchedAt time.Time, entries []aoc.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no leaderboard entries provided")
	}
	if len(entries) > imageEntryLimit {
		entries = entries[:imageEntryLimit]
	}

	htmlContent, err := s.generateHTML(leaderboardImageData{
		Year:      year,
		FetchedAt: fetchedAt.Format("15:04 MST"),
		Entries:   entries,
	})
	if err != nil {
		return nil, err
	}

	chromedpCtx, cancel := chromedp.NewContext(ctx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()
	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, 15*time.Second)
	defer cancel()

	start := time.Now()
	var imageBytes []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.Navigate("data:text/html,"+htmlContent),
		chromedp.WaitVisible("#leaderboard-container", chromedp.ByID),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.Screenshot("#leaderboard-container", &imageBytes, chromedp.ByID),
	)
	if err != nil {
		s.logger.Error("Failed to render leaderboard image",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to render image: %w", err)
	}

	s.logger.Info("Leaderboard image rendered",
		slog.Int("image_size", len(imageBytes)),
		slog.Duration("elapsed", time.Since(start)))
	return imageBytes, nil
}

func (s *LeaderboardImageService) generateHTML(data leaderboardImageData) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	// data: URLs treat '#' as a fragment separator and newlines poorly.
	htmlContent := strings.ReplaceAll(buf.String(), "#", "%23")
	htmlContent = strings.ReplaceAll(htmlContent, "\n", "")
	return htmlContent, nil
}
