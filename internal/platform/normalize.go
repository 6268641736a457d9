package platform

import (
	"regexp"
	"strings"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// RawPost mirrors the post fields selected by postsQuery.
type RawPost struct {
	ID        string   `json:"_id"`
	Title     *string  `json:"title"`
	HTMLBody  *string  `json:"htmlBody"`
	Slug      string   `json:"slug"`
	PageURL   *string  `json:"pageUrl"`
	PostedAt  string   `json:"postedAt"`
	BaseScore *float64 `json:"baseScore"`
	VoteCount *float64 `json:"voteCount"`
	WordCount *int     `json:"wordCount"`
	Question  bool     `json:"question"`
}

// RawComment mirrors the comment fields selected by commentsQuery.
type RawComment struct {
	ID        string   `json:"_id"`
	HTMLBody  *string  `json:"htmlBody"`
	PageURL   *string  `json:"pageUrl"`
	PostedAt  string   `json:"postedAt"`
	BaseScore *float64 `json:"baseScore"`
	VoteCount *float64 `json:"voteCount"`
	WordCount *int     `json:"wordCount"`
	Post      *struct {
		Title *string `json:"title"`
		Slug  string  `json:"slug"`
	} `json:"post"`
}

// StripHTML removes every <...> tag and trims surrounding whitespace. Entities are left as-is.
func StripHTML(html string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(html, ""))
}

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// NormalizePost converts a raw post into an archived item. Posts flagged as questions become shortforms.
func NormalizePost(p Platform, username string, raw RawPost) models.ArchivedItem {
	content := StripHTML(deref(raw.HTMLBody))
	contentType := models.ContentTypePost
	if raw.Question {
		contentType = models.ContentTypeShortform
	}
	url := deref(raw.PageURL)
	if url == "" {
		url = p.PostURL(raw.Slug)
	}
	return models.ArchivedItem{
		Platform:    p.Name,
		ContentType: contentType,
		Title:       raw.Title,
		Content:     content,
		URL:         url,
		DatePosted:  raw.PostedAt,
		Score:       pickScore(raw.BaseScore, raw.VoteCount),
		WordCount:   pickWordCount(raw.WordCount, content),
		Username:    username,
		OriginalID:  raw.ID,
	}
}

// NormalizeComment converts a raw comment; the replied-to post title becomes ParentTitle.
func NormalizeComment(p Platform, username string, raw RawComment) models.ArchivedItem {
	content := StripHTML(deref(raw.HTMLBody))
	item := models.ArchivedItem{
		Platform:    p.Name,
		ContentType: models.ContentTypeComment,
		Content:     content,
		URL:         deref(raw.PageURL),
		DatePosted:  raw.PostedAt,
		Score:       pickScore(raw.BaseScore, raw.VoteCount),
		WordCount:   pickWordCount(raw.WordCount, content),
		Username:    username,
		OriginalID:  raw.ID,
	}
	if raw.Post != nil {
		item.ParentTitle = raw.Post.Title
	}
	return item
}

func pickScore(base, votes *float64) *float64 {
	if base != nil {
		return base
	}
	return votes
}

func pickWordCount(source *int, content string) int {
	if source != nil && *source >= 0 {
		return *source
	}
	return CountWords(content)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
