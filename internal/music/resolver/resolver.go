package resolver

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
)

const (
	// TagPrefix marks a query that names a media tag.
	TagPrefix = "Media Tag: "
	// HistoryPrefix marks a query that references a recent play.
	HistoryPrefix = "History: "

	// EngineSoundcloud and EngineYoutube are the supported search
	// engines. Soundcloud is the default; youtube is per-guild opt-in.
	EngineSoundcloud = "soundcloud"
	EngineYoutube    = "youtube"
)

// TagStore resolves a tag key to its first stored value.
type TagStore interface {
	FirstValue(ctx context.Context, guildID, key string) (string, error)
}

// HistoryStore searches a guild's recent plays by title substring.
type HistoryStore interface {
	Search(ctx context.Context, guildID, title string) (uri string, err error)
}

// PrefStore returns the guild's preferred search engine, "" for default.
type PrefStore interface {
	SearchEngine(ctx context.Context, guildID string) (string, error)
}

// TrackLoader is the gateway's track-load endpoint.
type TrackLoader interface {
	LoadTracks(ctx context.Context, identifier string) (*lavalink.LoadResult, error)
}

// Strategy rewrites a raw query into a gateway identifier. Strategies
// are tried in registration order; the first match wins.
type Strategy interface {
	Name() string
	Matches(query string) bool
	Rewrite(ctx context.Context, guildID, query string) (string, error)
}

// NoResultsError reports a query the gateway could not resolve, with
// guidance the caller renders as an embed.
type NoResultsError struct {
	Query    string
	Strategy string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("no tracks found for %q (via %s)", e.Query, e.Strategy)
}

// Guidance lists the typical causes and remedies for a failed lookup.
func (e *NoResultsError) Guidance() []string {
	return []string{
		"The track may be private, age-restricted or region-locked.",
		"Playlists need their full URL, not a video-with-list link.",
		"Try a plain search instead of a URL, or the other way around.",
	}
}

// Resolver turns raw user queries into gateway load results.
type Resolver struct {
	loader     TrackLoader
	strategies []Strategy
}

// Config configures a Resolver.
type Config struct {
	Loader  TrackLoader
	Tags    TagStore
	History HistoryStore
	Prefs   PrefStore
}

// New builds the default strategy chain: tag, history, markdown URL,
// URL, search.
func New(cfg *Config) *Resolver {
	return &Resolver{
		loader: cfg.Loader,
		strategies: []Strategy{
			&tagStrategy{tags: cfg.Tags},
			&historyStrategy{history: cfg.History},
			&markdownStrategy{},
			&urlStrategy{},
			&searchStrategy{prefs: cfg.Prefs},
		},
	}
}

// Resolve rewrites the query through the first matching strategy and
// loads it. The returned identifier is what was sent to the gateway.
func (r *Resolver) Resolve(ctx context.Context, guildID, query string) (*lavalink.LoadResult, string, error) {
	query = strings.TrimSpace(query)
	for _, strategy := range r.strategies {
		if !strategy.Matches(query) {
			continue
		}
		identifier, err := strategy.Rewrite(ctx, guildID, query)
		if err != nil {
			return nil, "", fmt.Errorf("%s strategy: %w", strategy.Name(), err)
		}
		result, err := r.loader.LoadTracks(ctx, identifier)
		if err != nil {
			return nil, identifier, err
		}
		if result.Kind == lavalink.LoadKindEmpty ||
			(result.Kind == lavalink.LoadKindSearch && len(result.Tracks) == 0) {
			return nil, identifier, &NoResultsError{Query: query, Strategy: strategy.Name()}
		}
		if result.Kind == lavalink.LoadKindError {
			log.Printf("[Resolver] gateway load error for %q: %v", identifier, result.Error)
			return nil, identifier, &NoResultsError{Query: query, Strategy: strategy.Name()}
		}
		return result, identifier, nil
	}
	// The search strategy matches everything, so this is unreachable
	// with the default chain.
	return nil, "", &NoResultsError{Query: query, Strategy: "none"}
}

// officialPhrases are excluded when picking the first result of a
// multi-line query, so lyric uploads win over music videos.
var officialPhrases = []string{"official video", "official music video", "official audio"}

// PickFirst selects a track from search candidates. With
// excludeOfficial, titles carrying an official-release phrase are
// skipped; if every candidate carries one, the first is used anyway.
func PickFirst(tracks []lavalink.Track, excludeOfficial bool) (lavalink.Track, bool) {
	if len(tracks) == 0 {
		return lavalink.Track{}, false
	}
	if !excludeOfficial {
		return tracks[0], true
	}
	for _, track := range tracks {
		title := strings.ToLower(track.Info.Title)
		official := false
		for _, phrase := range officialPhrases {
			if strings.Contains(title, phrase) {
				official = true
				break
			}
		}
		if !official {
			return track, true
		}
	}
	return tracks[0], true
}

// Canonicalise strips playlist parameters from a single-track youtube
// watch URL, so a video-with-list link loads just the video.
func Canonicalise(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if (host != "youtube.com" && host != "m.youtube.com") || u.Path != "/watch" {
		return raw
	}
	q := u.Query()
	if q.Get("v") == "" {
		return raw
	}
	if q.Get("list") == "" && q.Get("index") == "" {
		return raw
	}
	q.Del("list")
	q.Del("index")
	q.Del("start_radio")
	u.RawQuery = q.Encode()
	return u.String()
}

type tagStrategy struct {
	tags TagStore
}

func (s *tagStrategy) Name() string { return "tag" }

func (s *tagStrategy) Matches(query string) bool {
	return strings.HasPrefix(query, TagPrefix)
}

func (s *tagStrategy) Rewrite(ctx context.Context, guildID, query string) (string, error) {
	key := strings.TrimSpace(strings.TrimPrefix(query, TagPrefix))
	value, err := s.tags.FirstValue(ctx, guildID, key)
	if err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", key, err)
	}
	return value, nil
}

type historyStrategy struct {
	history HistoryStore
}

func (s *historyStrategy) Name() string { return "history" }

func (s *historyStrategy) Matches(query string) bool {
	return strings.HasPrefix(query, HistoryPrefix)
}

func (s *historyStrategy) Rewrite(ctx context.Context, guildID, query string) (string, error) {
	title := strings.TrimSpace(strings.TrimPrefix(query, HistoryPrefix))
	uri, err := s.history.Search(ctx, guildID, title)
	if err != nil {
		return "", fmt.Errorf("resolve history %q: %w", title, err)
	}
	return uri, nil
}

var markdownURLPattern = regexp.MustCompile(`\[[^\]]*\]\((https?://\S+)\)`)

type markdownStrategy struct{}

func (s *markdownStrategy) Name() string { return "markdown-url" }

func (s *markdownStrategy) Matches(query string) bool {
	return markdownURLPattern.MatchString(query)
}

func (s *markdownStrategy) Rewrite(_ context.Context, _ string, query string) (string, error) {
	match := markdownURLPattern.FindStringSubmatch(query)
	return Canonicalise(match[1]), nil
}

var urlPattern = regexp.MustCompile(`^(https?://|www\.)\S+$`)

type urlStrategy struct{}

func (s *urlStrategy) Name() string { return "url" }

func (s *urlStrategy) Matches(query string) bool {
	return urlPattern.MatchString(query)
}

func (s *urlStrategy) Rewrite(_ context.Context, _ string, query string) (string, error) {
	if strings.HasPrefix(query, "www.") {
		query = "https://" + query
	}
	return Canonicalise(query), nil
}

type searchStrategy struct {
	prefs PrefStore
}

func (s *searchStrategy) Name() string { return "search" }

func (s *searchStrategy) Matches(string) bool { return true }

func (s *searchStrategy) Rewrite(ctx context.Context, guildID, query string) (string, error) {
	engine := EngineSoundcloud
	if s.prefs != nil && guildID != "" {
		preferred, err := s.prefs.SearchEngine(ctx, guildID)
		if err != nil {
			log.Printf("[Resolver] search engine lookup failed for guild %s: %v", guildID, err)
		} else if preferred != "" {
			engine = preferred
		}
	}
	switch engine {
	case EngineYoutube:
		return "ytsearch:" + query, nil
	default:
		return "scsearch:" + query, nil
	}
}
