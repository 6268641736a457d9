// Package platform retrieves and normalizes content from the forums that share the
// ForumMagnum GraphQL schema.
package platform

import (
	"strings"

	"github.com/noah-isme/forum-archive-api/internal/models"
	"github.com/noah-isme/forum-archive-api/pkg/config"
)

// Platform describes one supported forum: where its GraphQL API lives and how post URLs are built.
type Platform struct {
	Name        models.Platform
	Label       string
	Endpoint    string
	BasePostURL string
}

var (
	EAForum = Platform{
		Name:        models.PlatformEAForum,
		Label:       "EA Forum",
		Endpoint:    "https://forum.effectivealtruism.org/graphql",
		BasePostURL: "https://forum.effectivealtruism.org/posts",
	}
	LessWrong = Platform{
		Name:        models.PlatformLessWrong,
		Label:       "LessWrong",
		Endpoint:    "https://www.lesswrong.com/graphql",
		BasePostURL: "https://www.lesswrong.com/posts",
	}
)

// Supported returns the closed set of platforms with endpoint overrides applied.
func Supported(cfg config.PlatformsConfig) []Platform {
	ea, lw := EAForum, LessWrong
	if cfg.EAForumEndpoint != "" {
		ea.Endpoint = cfg.EAForumEndpoint
	}
	if cfg.LessWrongEndpoint != "" {
		lw.Endpoint = cfg.LessWrongEndpoint
	}
	return []Platform{ea, lw}
}

// PostURL builds the canonical URL of a post from its slug.
func (p Platform) PostURL(slug string) string {
	if slug == "" {
		return ""
	}
	return strings.TrimRight(p.BasePostURL, "/") + "/" + slug
}
