package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/forum-archive-api/internal/models"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
	"github.com/noah-isme/forum-archive-api/pkg/graphql"
)

const userQuery = `query GetUser($slug: String!) {
  user(input: { selector: { slug: $slug } }) {
    result {
      _id
      username
      slug
    }
  }
}`

const postsQuery = `query GetUserPosts($userId: String!) {
  posts(input: { terms: { view: "userPosts", userId: $userId } }) {
    results {
      _id
      title
      htmlBody
      slug
      pageUrl
      postedAt
      baseScore
      voteCount
      wordCount
      question
    }
  }
}`

const commentsQuery = `query GetUserComments($userId: String!) {
  comments(input: { terms: { view: "userComments", userId: $userId } }) {
    results {
      _id
      htmlBody
      pageUrl
      postedAt
      baseScore
      voteCount
      wordCount
      post {
        title
        slug
      }
    }
  }
}`

type userResponse struct {
	User *struct {
		Result *struct {
			ID       string `json:"_id"`
			Username string `json:"username"`
			Slug     string `json:"slug"`
		} `json:"result"`
	} `json:"user"`
}

type postsResponse struct {
	Posts *struct {
		Results []RawPost `json:"results"`
	} `json:"posts"`
}

type commentsResponse struct {
	Comments *struct {
		Results []RawComment `json:"results"`
	} `json:"comments"`
}

// UserIDCache memoizes username to user id resolution. Get returns appErrors.ErrCacheMiss on a miss.
type UserIDCache interface {
	GetUserID(ctx context.Context, platform models.Platform, slug string) (string, error)
	SetUserID(ctx context.Context, platform models.Platform, slug, userID string) error
}

// UpstreamObserver receives the duration and outcome of each GraphQL call.
type UpstreamObserver interface {
	ObserveUpstream(platform models.Platform, operation, outcome string, duration time.Duration)
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithUserIDCache enables user id caching.
func WithUserIDCache(cache UserIDCache) Option {
	return func(f *Fetcher) { f.cache = cache }
}

// WithObserver records upstream call metrics.
func WithObserver(obs UpstreamObserver) Option {
	return func(f *Fetcher) { f.observer = obs }
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Fetcher retrieves every post and comment of a user from one platform.
// Results are not paginated: the upstream views return the full set in one page.
type Fetcher struct {
	platform Platform
	client   *graphql.Client
	cache    UserIDCache
	observer UpstreamObserver
	logger   *zap.Logger
}

// NewFetcher binds a fetcher to p's endpoint. Upstream timeouts are taken from httpClient.
func NewFetcher(p Platform, httpClient *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		platform: p,
		client:   graphql.New(p.Endpoint, httpClient),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("platform", string(p.Name)))
	return f
}

// Platform returns the platform this fetcher is bound to.
func (f *Fetcher) Platform() Platform {
	return f.platform
}

// Fetch resolves username and returns its normalized posts followed by its comments.
func (f *Fetcher) Fetch(ctx context.Context, username string) ([]models.ArchivedItem, error) {
	userID, err := f.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	var (
		posts    postsResponse
		comments commentsResponse
	)
	vars := map[string]any{"userId": userID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.execute(gctx, "posts", postsQuery, vars, &posts)
	})
	g.Go(func() error {
		return f.execute(gctx, "comments", commentsQuery, vars, &comments)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rawPosts []RawPost
	if posts.Posts != nil {
		rawPosts = posts.Posts.Results
	}
	var rawComments []RawComment
	if comments.Comments != nil {
		rawComments = comments.Comments.Results
	}

	items := make([]models.ArchivedItem, 0, len(rawPosts)+len(rawComments))
	for _, p := range rawPosts {
		items = append(items, NormalizePost(f.platform, username, p))
	}
	for _, c := range rawComments {
		items = append(items, NormalizeComment(f.platform, username, c))
	}
	f.logger.Info("fetched user content",
		zap.String("username", username),
		zap.Int("posts", len(rawPosts)),
		zap.Int("comments", len(rawComments)))
	return items, nil
}

func (f *Fetcher) resolveUser(ctx context.Context, username string) (string, error) {
	if f.cache != nil {
		id, err := f.cache.GetUserID(ctx, f.platform.Name, username)
		switch {
		case err == nil && id != "":
			return id, nil
		case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
			f.logger.Warn("user id cache lookup failed", zap.String("username", username), zap.Error(err))
		}
	}

	var resp userResponse
	if err := f.execute(ctx, "user", userQuery, map[string]any{"slug": username}, &resp); err != nil {
		return "", err
	}
	if resp.User == nil || resp.User.Result == nil || resp.User.Result.ID == "" {
		return "", appErrors.Clone(appErrors.ErrUserNotFound,
			fmt.Sprintf("user %q not found on %s (%s)", username, f.platform.Label, f.platform.Name))
	}
	userID := resp.User.Result.ID

	if f.cache != nil {
		if err := f.cache.SetUserID(ctx, f.platform.Name, username, userID); err != nil {
			f.logger.Warn("user id cache store failed", zap.String("username", username), zap.Error(err))
		}
	}
	return userID, nil
}

func (f *Fetcher) execute(ctx context.Context, operation, query string, vars map[string]any, out any) error {
	start := time.Now()
	err := f.client.Execute(ctx, query, vars, out)
	if f.observer != nil {
		f.observer.ObserveUpstream(f.platform.Name, operation, outcome(err), time.Since(start))
	}
	if err == nil {
		return nil
	}

	var statusErr *graphql.StatusError
	if errors.As(err, &statusErr) {
		return appErrors.Wrap(err, appErrors.ErrUpstreamFetch.Code, appErrors.ErrUpstreamFetch.Status,
			fmt.Sprintf("%s %s fetch failed with status %d", f.platform.Label, operation, statusErr.StatusCode))
	}
	return appErrors.Wrap(err, appErrors.ErrUpstreamFetch.Code, appErrors.ErrUpstreamFetch.Status,
		fmt.Sprintf("%s %s fetch failed", f.platform.Label, operation))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var statusErr *graphql.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("status_%d", statusErr.StatusCode)
	}
	var respErr *graphql.ResponseError
	if errors.As(err, &respErr) {
		return "graphql_error"
	}
	return "transport_error"
}
