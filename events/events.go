// Package events carries post lifecycle notifications to other services over
// RabbitMQ.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const TypePostPublished = "post.published"

type PostPublishedPayload struct {
	PostID   int64  `json:"post_id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	AuthorID int64  `json:"author_id"`
}

// PostPublished is emitted when a post enters the published state, either on
// creation or through an edit.
type PostPublished struct {
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   PostPublishedPayload `json:"payload"`
}

func NewPostPublished(postID int64, slug, name string, authorID int64) PostPublished {
	return PostPublished{
		Type:      TypePostPublished,
		Timestamp: time.Now().UTC(),
		Payload: PostPublishedPayload{
			PostID:   postID,
			Slug:     slug,
			Name:     name,
			AuthorID: authorID,
		},
	}
}

// DecodePostPublished parses a delivery body and rejects other event types.
func DecodePostPublished(body []byte) (PostPublished, error) {
	var e PostPublished
	if err := json.Unmarshal(body, &e); err != nil {
		return PostPublished{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type != TypePostPublished {
		return PostPublished{}, fmt.Errorf("unexpected event type %q", e.Type)
	}
	return e, nil
}
