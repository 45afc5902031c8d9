package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/fetch"
	"github.com/Sriram-PR/site-indexer/pkg/models"
)

// IndexNowBatchSize is the most URLs sent in one IndexNow POST
const IndexNowBatchSize = 100

// channelPlan is a channel's targets and the strategy chain walked for each
type channelPlan struct {
	name    string
	targets []Target
	chain   []Strategy
}

// planner builds channel plans from resolved settings
type planner struct {
	cfg        config.NotifierConfig
	siteURL    string
	sitemapURL string
	pages      []string // Absolute URLs of priority pages, or every registry URL
	fetcher    *fetch.Fetcher
	authed     *fetch.Fetcher // nil without credentials
	pacer      *pacer
}

func (p *planner) plan(channel string) channelPlan {
	switch channel {
	case config.ChannelGoogle:
		return p.google()
	case config.ChannelBing:
		return p.ping(channel, p.cfg.BingPingURL)
	case config.ChannelYandex:
		return p.ping(channel, p.cfg.YandexPingURL)
	case config.ChannelIndexNow:
		return p.indexNow()
	case config.ChannelGoogleIndexing:
		return p.googleIndexing()
	}
	return channelPlan{
		name:    channel,
		targets: []Target{{Label: channel}},
		chain:   []Strategy{skipStrategy{name: channel, status: models.NotificationError, message: "unknown channel"}},
	}
}

func (p *planner) step(name string, kind stepKind, f *fetch.Fetcher, build func(context.Context, Target) (*http.Request, error)) Strategy {
	delay := p.cfg.PerPageDelay
	if kind == stepPing {
		delay = p.cfg.PingDelay
	}
	return &httpStrategy{name: name, kind: kind, fetcher: f, pacer: p.pacer, delay: delay, build: build}
}

// searchConsoleURL is the Search Console sitemaps.submit endpoint
func (p *planner) searchConsoleURL() string {
	base := strings.TrimRight(p.cfg.SearchConsoleBaseURL, "/")
	return fmt.Sprintf("%s/sites/%s/sitemaps/%s", base, url.QueryEscape(p.siteURL+"/"), url.QueryEscape(p.sitemapURL))
}

func (p *planner) google() channelPlan {
	submit := func(ctx context.Context, _ Target) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPut, p.searchConsoleURL(), nil)
	}
	var chain []Strategy
	if p.authed != nil {
		chain = append(chain, p.step("search_console_api", stepAPI, p.authed, submit))
	}
	chain = append(chain,
		p.step("search_console_direct", stepDirect, p.fetcher, submit),
		p.step("ping", stepPing, p.fetcher, pingRequest(p.cfg.GooglePingURL, p.sitemapURL)),
	)
	return channelPlan{
		name:    config.ChannelGoogle,
		targets: []Target{{Label: p.sitemapURL, URLs: []string{p.sitemapURL}}},
		chain:   chain,
	}
}

func (p *planner) ping(channel, endpoint string) channelPlan {
	return channelPlan{
		name:    channel,
		targets: []Target{{Label: p.sitemapURL, URLs: []string{p.sitemapURL}}},
		chain:   []Strategy{p.step("ping", stepPing, p.fetcher, pingRequest(endpoint, p.sitemapURL))},
	}
}

func pingRequest(endpoint, sitemapURL string) func(context.Context, Target) (*http.Request, error) {
	return func(ctx context.Context, _ Target) (*http.Request, error) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("sitemap", sitemapURL)
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
}

type indexNowPayload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

func (p *planner) indexNow() channelPlan {
	if p.cfg.IndexNowKey == "" {
		return channelPlan{
			name:    config.ChannelIndexNow,
			targets: []Target{{Label: p.cfg.IndexNowEndpoint}},
			chain: []Strategy{skipStrategy{
				name:    "indexnow",
				status:  models.NotificationWarning,
				message: "not configured: set INDEXNOW_API_KEY",
			}},
		}
	}

	host := p.siteURL
	if u, err := url.Parse(p.siteURL); err == nil {
		host = u.Hostname()
	}
	keyLocation := p.cfg.IndexNowKeyLocation
	if keyLocation == "" {
		keyLocation = p.siteURL + "/" + p.cfg.IndexNowKey + ".txt"
	}

	var targets []Target
	total := (len(p.pages) + IndexNowBatchSize - 1) / IndexNowBatchSize
	for i := 0; i < len(p.pages); i += IndexNowBatchSize {
		end := min(i+IndexNowBatchSize, len(p.pages))
		targets = append(targets, Target{
			Label: fmt.Sprintf("batch %d/%d", i/IndexNowBatchSize+1, total),
			URLs:  p.pages[i:end],
		})
	}

	post := func(ctx context.Context, t Target) (*http.Request, error) {
		body, err := json.Marshal(indexNowPayload{Host: host, Key: p.cfg.IndexNowKey, KeyLocation: keyLocation, URLList: t.URLs})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.IndexNowEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		return req, nil
	}
	return channelPlan{
		name:    config.ChannelIndexNow,
		targets: targets,
		chain:   []Strategy{p.step("indexnow_api", stepDirect, p.fetcher, post)},
	}
}

type urlNotification struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

func (p *planner) googleIndexing() channelPlan {
	publish := func(ctx context.Context, t Target) (*http.Request, error) {
		body, err := json.Marshal(urlNotification{URL: t.Label, Type: "URL_UPDATED"})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.IndexingAPIURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	var chain []Strategy
	if p.authed != nil {
		chain = append(chain, p.step("indexing_api", stepAPI, p.authed, publish))
	}
	chain = append(chain, p.step("indexing_direct", stepDirect, p.fetcher, publish))

	targets := make([]Target, 0, len(p.pages))
	for _, u := range p.pages {
		targets = append(targets, Target{Label: u, URLs: []string{u}})
	}
	return channelPlan{name: config.ChannelGoogleIndexing, targets: targets, chain: chain}
}

// ResolvePages turns configured priority pages (paths or absolute URLs) into absolute URLs
func ResolvePages(siteURL string, pages []string) []string {
	base := strings.TrimRight(siteURL, "/")
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
			continue
		case strings.HasPrefix(p, "http://"), strings.HasPrefix(p, "https://"):
			out = append(out, p)
		case strings.HasPrefix(p, "/"):
			out = append(out, base+p)
		default:
			out = append(out, base+"/"+p)
		}
	}
	return out
}
