package models

import "time"

// ContentType classifies an archived record.
type ContentType string

const (
	ContentTypePost      ContentType = "post"
	ContentTypeComment   ContentType = "comment"
	ContentTypeShortform ContentType = "shortform"
)

// ArchivedItem is one normalized post, shortform or comment owned by a job.
type ArchivedItem struct {
	ID          string      `db:"id" json:"id"`
	JobID       string      `db:"job_id" json:"jobId"`
	Position    int         `db:"position" json:"-"`
	Platform    Platform    `db:"platform" json:"platform"`
	ContentType ContentType `db:"content_type" json:"contentType"`
	Title       *string     `db:"title" json:"title,omitempty"`
	Content     string      `db:"content" json:"content"`
	URL         string      `db:"url" json:"url"`
	DatePosted  string      `db:"date_posted" json:"datePosted"`
	Score       *float64    `db:"score" json:"score,omitempty"`
	ParentTitle *string     `db:"parent_title" json:"parentTitle,omitempty"`
	WordCount   int         `db:"word_count" json:"wordCount"`
	Username    string      `db:"username" json:"username"`
	OriginalID  string      `db:"original_id" json:"originalId"`
	CreatedAt   time.Time   `db:"created_at" json:"-"`
}
