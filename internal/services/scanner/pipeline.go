// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scanner

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/moistari/rls"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/prowlarr"
	"github.com/gamearr/gamearr/pkg/gametitle"
	"github.com/gamearr/gamearr/pkg/gameversion"
)

// Skip categories, used for metrics labels and the skipped-release view.
const (
	SkipCategoryIgnored     = "ignored"
	SkipCategoryTitle       = "title"
	SkipCategoryGameExclude = "game_exclude"
	SkipCategoryContentType = "content_type"
	SkipCategoryCategory    = "category"
	SkipCategoryPlatform    = "platform"
	SkipCategoryKeyword     = "keyword"
	SkipCategoryVersion     = "version"
	SkipCategoryOlder       = "older"
	SkipCategoryDuplicate   = "duplicate"
)

// SkipInfo describes one search result the pipeline rejected.
type SkipInfo struct {
	GameID      int    `json:"gameId"`
	GameTitle   string `json:"gameTitle"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Reason      string `json:"reason"`
	Category    string `json:"category"`
	Indexer     string `json:"indexer"`
	IsNewerDate bool   `json:"isNewerDate"`
	MagnetURL   string `json:"magnetUrl,omitempty"`
	InfoURL     string `json:"infoUrl,omitempty"`
	Size        string `json:"size"`
}

// Outcome is the pipeline verdict for one search result. Exactly one of
// Release and Skip is set. Duplicate carries the stored row when the skip
// category is duplicate so callers can refresh its swarm metrics.
// Candidate is set whenever a version was observed, including on older and
// duplicate skips, feeding version consensus.
type Outcome struct {
	Release   *models.Release
	Skip      *SkipInfo
	Duplicate *models.Release
	Candidate *gameversion.Candidate
}

// contentTypePatterns reject releases that are not game builds: mods,
// patches, rips, guides, soundtracks and similar. Russian keywords cover
// the trackers that label in Russian.
var contentTypePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\[mods?\]`),
	regexp.MustCompile(`(?i)^mod[\s:-]`),
	regexp.MustCompile(`(?i)(?:^|\s)модификация[\s:-]`),
	regexp.MustCompile(`(?i)^\[patch\]`),
	regexp.MustCompile(`(?i)^patch[\s:-]`),
	regexp.MustCompile(`(?i)(?:^|\s)патч[\s:-]`),
	regexp.MustCompile(`(?i)русификатор[\s:-]`),
	regexp.MustCompile(`(?i)\[звук\]`),
	regexp.MustCompile(`(?i)^\[artbook\]`),
	regexp.MustCompile(`(?i)(?:^|\s)артбук[\s:-]`),
	regexp.MustCompile(`(?i)^\[machinima\]`),
	regexp.MustCompile(`(?i)\btrailer\b`),
	regexp.MustCompile(`(?i)^\[other\]`),
	regexp.MustCompile(`(?i)^\[utility\]`),
	regexp.MustCompile(`(?i)^\[утилита\]`),
	regexp.MustCompile(`(?i)^texture pack`),
	regexp.MustCompile(`(?i)\bhd overhaul by\b`),
	regexp.MustCompile(`(?i)\bpreorder bonus\b`),
	regexp.MustCompile(`(?i)\bseries\b.*\bseason\b`),
	regexp.MustCompile(`(?i)\bs\d+e\d+`),
	regexp.MustCompile(`(?i)эпизод.*из`),
	regexp.MustCompile(`(?i)\b(?:bdrip|brrip|webrip|web-?dl|dvdrip|hdrip|blu-?ray)\b`),
	regexp.MustCompile(`(?i)\b(?:h\.?26[45]|x26[45]|2160p|1080p|720p|4k)\b`),
	regexp.MustCompile(`(?i)\b(?:official guide|guidebook|art of|strategy guide)\b`),
	regexp.MustCompile(`(?i)(?:cults3d|3d print|\.stl\b)`),
	regexp.MustCompile(`(?i)\b(?:soundtrack|ost|lossless|mp3|flac|score)\b`),
	regexp.MustCompile(`(?i)\b(?:webinar|course|tutorial)\b`),
	regexp.MustCompile(`(?i)(?:^|\s)(?:урок|обучение)`),
}

// Category names from indexers that indicate games. A result is only
// rejected on category when it matches a non-game keyword and none of
// these.
var gameCategoryKeywords = []string{
	"game", "games", "игр", "pc", "action", "adventure", "quest", "rpg",
	"strategy", "simulation", "simulator", "arcade", "racing", "shooter",
	"fighting", "экшен", "приключ", "ролев", "стратег", "симулятор", "аркад",
}

var nonGameCategoryKeywords = []string{
	"movie", "film", "video", "tv", "series", "anime", "cartoon",
	"soundtrack", "music", "book", "guide", "artbook", "ebook", "software",
	"program", "course", "фильм", "сериал", "аниме", "саундтрек", "музык",
	"книг", "артбук", "журнал", "урок", "обуч", "софт", "программ",
}

var consolePlatformMarkers = []string{"ps5", "ps4", "ps3", "xbox", "switch", "android", "ios"}

var linuxIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\bwine\b`),
	regexp.MustCompile(`\blinux\b`),
	regexp.MustCompile(`\[l\]`),
	regexp.MustCompile(`\sproton\b`),
}

var windowsIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\bwindows\b`),
	regexp.MustCompile(`\bwin64\b`),
	regexp.MustCompile(`\bwin32\b`),
	regexp.MustCompile(`\[w\]`),
}

var macIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\bmacos\b`),
	regexp.MustCompile(`\bmac\b`),
	regexp.MustCompile(`\bosx\b`),
}

// Filter evaluates search results for one game against the configured
// rejection gates, in a fixed order so skip reasons stay stable.
type Filter struct {
	game             *models.Game
	matchQuery       string
	queryPattern     *regexp.Regexp
	excludeKeywords  []string
	ignoredKeywords  []string
	allowedPlatforms []string
	ignoredTitles    map[string]struct{}
	existing         map[string]*models.Release
	now              time.Time
}

// NewFilter builds a Filter. ignoredKeywords and allowedPlatforms are
// expected lowercased; ignoredTitles and existing are keyed by raw release
// title.
func NewFilter(
	game *models.Game,
	matchQuery string,
	ignoredKeywords []string,
	allowedPlatforms []string,
	ignoredTitles map[string]struct{},
	existing map[string]*models.Release,
	now time.Time,
) *Filter {
	f := &Filter{
		game:             game,
		matchQuery:       matchQuery,
		ignoredKeywords:  ignoredKeywords,
		allowedPlatforms: allowedPlatforms,
		ignoredTitles:    ignoredTitles,
		existing:         existing,
		now:              now,
	}

	if game.ExcludeKeywords != nil {
		for _, keyword := range strings.Split(*game.ExcludeKeywords, ",") {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword != "" {
				f.excludeKeywords = append(f.excludeKeywords, keyword)
			}
		}
	}

	f.queryPattern = buildQueryPattern(matchQuery, game)

	return f
}

// buildQueryPattern compiles a whole-phrase matcher for the search query
// against normalized release titles. Whitespace runs in the query match
// any whitespace run in the title.
func buildQueryPattern(matchQuery string, game *models.Game) *regexp.Regexp {
	query := matchQuery
	if query == "" {
		query = game.SearchQuery
	}
	if query == "" {
		query = game.Title
	}

	normalized := gametitle.NormalizeTitle(query)
	if normalized == "" {
		return nil
	}

	escaped := strings.Join(strings.Fields(regexp.QuoteMeta(normalized)), `\s+`)
	pattern, err := regexp.Compile(`(?i)\b` + escaped + `\b`)
	if err != nil {
		log.Warn().Str("query", query).Err(err).Msg("failed to compile title match pattern")
		return nil
	}
	return pattern
}

// Evaluate runs one search result through every gate.
func (f *Filter) Evaluate(item prowlarr.SearchResult) Outcome {
	title := item.Title
	titleLower := strings.ToLower(title)
	indexer := item.Indexer
	if indexer == "" {
		indexer = "Unknown"
	}

	uploadDate := ResolveUploadDate(item, f.now)
	isNewerDate := uploadDate != nil && uploadDate.After(f.game.CurrentVersionDate)

	makeSkip := func(reason, category string) Outcome {
		date := "N/A"
		if uploadDate != nil {
			date = uploadDate.UTC().Format("2006-01-02 15:04")
		}
		return Outcome{Skip: &SkipInfo{
			GameID:      f.game.ID,
			GameTitle:   f.game.Title,
			Title:       title,
			Date:        date,
			Reason:      reason,
			Category:    category,
			Indexer:     indexer,
			IsNewerDate: isNewerDate,
			MagnetURL:   item.DownloadLink(),
			InfoURL:     item.InfoURL,
			Size:        FormatSize(item.Size),
		}}
	}

	remoteVersion := gameversion.Extract(title)
	candidate := func() *gameversion.Candidate {
		if remoteVersion == "" {
			return nil
		}
		c := gameversion.NewCandidate(title, remoteVersion, uploadDate)
		return &c
	}

	if _, ok := f.ignoredTitles[title]; ok {
		log.Debug().Str("title", title).Msg("[Skip] user ignored")
		return makeSkip("User ignored", SkipCategoryIgnored)
	}

	if f.queryPattern == nil || !f.queryPattern.MatchString(gametitle.NormalizeTitle(title)) {
		log.Debug().Str("title", title).Str("query", f.matchQuery).Msg("[Skip] title mismatch")
		return makeSkip(fmt.Sprintf("Title mismatch (Search Query: %q not found)", f.matchQuery), SkipCategoryTitle)
	}

	for _, keyword := range f.excludeKeywords {
		if strings.Contains(titleLower, keyword) {
			log.Debug().Str("title", title).Str("keyword", keyword).Msg("[Skip] excluded keyword")
			return makeSkip(fmt.Sprintf("Excluded by game-specific keyword: %q", keyword), SkipCategoryGameExclude)
		}
	}

	for _, pattern := range contentTypePatterns {
		if pattern.MatchString(title) {
			log.Debug().Str("title", title).Msg("[Skip] non-game content type")
			return makeSkip("Non-game content (mod/patch/video/etc)", SkipCategoryContentType)
		}
	}

	// rls catches episodic TV and music releases the keyword list misses.
	if r := rls.ParseString(title); (r.Series > 0 && r.Episode > 0) || r.Type == rls.Music {
		log.Debug().Str("title", title).Msg("[Skip] non-game release type")
		return makeSkip("Non-game content (mod/patch/video/etc)", SkipCategoryContentType)
	}

	if isNonGameCategory(item.Categories) {
		log.Debug().Str("title", title).Msg("[Skip] excluded category")
		return makeSkip("Category excluded (non-game)", SkipCategoryCategory)
	}

	for _, marker := range consolePlatformMarkers {
		if strings.Contains(titleLower, marker) {
			log.Debug().Str("title", title).Msg("[Skip] platform excluded")
			return makeSkip("Platform excluded (console/mobile)", SkipCategoryPlatform)
		}
	}

	if contains(f.allowedPlatforms, "windows") && !contains(f.allowedPlatforms, "linux") {
		if matchesAny(linuxIndicators, titleLower) && !matchesAny(windowsIndicators, titleLower) {
			log.Debug().Str("title", title).Msg("[Skip] platform excluded (Linux/Wine)")
			return makeSkip("Platform excluded (Linux/Wine)", SkipCategoryPlatform)
		}
	}

	if !contains(f.allowedPlatforms, "macos") && !contains(f.allowedPlatforms, "mac") {
		if matchesAny(macIndicators, titleLower) {
			log.Debug().Str("title", title).Msg("[Skip] platform excluded (macOS)")
			return makeSkip("Platform excluded (macOS)", SkipCategoryPlatform)
		}
	}

	for _, keyword := range f.ignoredKeywords {
		if keyword != "" && strings.Contains(titleLower, keyword) {
			log.Debug().Str("title", title).Msg("[Skip] ignored keyword match")
			return makeSkip("Ignored keyword match", SkipCategoryKeyword)
		}
	}

	if remoteVersion != "" && f.game.CurrentVersion != nil && *f.game.CurrentVersion != "" {
		switch gameversion.Compare(*f.game.CurrentVersion, remoteVersion) {
		case gameversion.Equal:
			log.Debug().Str("title", title).Msg("[Skip] version already installed")
			return makeSkip("Version matches local (already installed)", SkipCategoryVersion)
		case gameversion.Older:
			log.Debug().Str("title", title).Msg("[Skip] version older than local")
			return makeSkip("Version older than local", SkipCategoryVersion)
		}
	}

	if !isNewerDate {
		log.Debug().Str("title", title).Time("currentVersionDate", f.game.CurrentVersionDate).Msg("[Skip] date not newer")
		outcome := makeSkip("Date not newer", SkipCategoryOlder)
		outcome.Candidate = candidate()
		return outcome
	}

	if existing, ok := f.existing[title]; ok {
		log.Debug().Str("title", title).Msg("[Skip] already exists in database")
		outcome := makeSkip("Already exists in database", SkipCategoryDuplicate)
		outcome.Duplicate = existing
		outcome.Candidate = candidate()
		return outcome
	}

	log.Info().Str("title", title).Str("version", orUnknown(remoteVersion)).Msg("[Add] release accepted")

	release := &models.Release{
		GameID:     f.game.ID,
		RawTitle:   title,
		UploadDate: models.Epoch,
		Indexer:    indexer,
		Seeders:    NormalizeMetric(item.Seeders),
		Leechers:   NormalizeMetric(item.Leechers),
		Grabs:      NormalizeMetric(item.Grabs),
	}
	if remoteVersion != "" {
		release.ParsedVersion = &remoteVersion
	}
	if uploadDate != nil {
		release.UploadDate = uploadDate.UTC()
	}
	if link := item.DownloadLink(); link != "" {
		release.MagnetURL = &link
	}
	if item.InfoURL != "" {
		release.InfoURL = &item.InfoURL
	}
	size := FormatSize(item.Size)
	release.Size = &size

	return Outcome{Release: release, Candidate: candidate()}
}

// isNonGameCategory rejects only when category names match non-game
// keywords without any game keyword alongside, since trackers often nest
// categories like "Games/PC".
func isNonGameCategory(categories []prowlarr.Category) bool {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		if name := strings.ToLower(strings.TrimSpace(c.Name)); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return false
	}

	hasGame := false
	hasNonGame := false
	for _, name := range names {
		for _, kw := range gameCategoryKeywords {
			if strings.Contains(name, kw) {
				hasGame = true
				break
			}
		}
		for _, kw := range nonGameCategoryKeywords {
			if strings.Contains(name, kw) {
				hasNonGame = true
				break
			}
		}
	}

	return hasNonGame && !hasGame
}

func matchesAny(patterns []*regexp.Regexp, value string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}
