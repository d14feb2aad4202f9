// Package youtube resolves titles and enumerates playlists through the YouTube API client, without shelling out.
package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/generic"
	"github.com/alanbriolat/channel-archiver/util"
)

// The subset of *youtube.Client used here.
type apiClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
}

type Provider struct {
	client           apiClient
	TitleTimeout     time.Duration
	EnumerateTimeout time.Duration
	log              *zap.SugaredLogger
}

func New(titleTimeout time.Duration, enumerateTimeout time.Duration) *Provider {
	return &Provider{
		client:           &youtube.Client{},
		TitleTimeout:     titleTimeout,
		EnumerateTimeout: enumerateTimeout,
		log:              zap.S().Named("youtube"),
	}
}

// Title fetches the video's metadata and returns its title.
func (p *Provider) Title(ctx context.Context, url string) (string, error) {
	ctx, cancel := withOptionalTimeout(ctx, p.TitleTimeout)
	defer cancel()
	video, err := p.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to get video info: %w", err)
	}
	title := strings.TrimSpace(video.Title)
	if title == "" {
		return "", fmt.Errorf("video %v has no title", video.ID)
	}
	return title, nil
}

// Discover lists the videos of a playlist as canonical watch URLs, in playlist order.
func (p *Provider) Discover(ctx context.Context, ref string) ([]string, error) {
	ctx, cancel := withOptionalTimeout(ctx, p.EnumerateTimeout)
	defer cancel()
	playlist, err := p.client.GetPlaylistContext(ctx, ref)
	if err != nil {
		return []string{}, fmt.Errorf("failed to get playlist: %w", err)
	}
	p.log.Debugw("fetched playlist", "id", playlist.ID, "title", playlist.Title, "entries", len(playlist.Videos))
	urls := generic.NewSet[string]()
	for _, entry := range playlist.Videos {
		if entry != nil && entry.ID != "" {
			urls.Add(util.VideoURL(entry.ID))
		}
	}
	return urls.ToSlice(), nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
