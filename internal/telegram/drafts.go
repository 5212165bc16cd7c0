package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DraftStore keeps the half-finished order text between conversation steps.
// Drafts are transient by nature, so they live in Redis with a TTL instead of
// the order store: an abandoned draft simply expires.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DraftStore{client: client, ttl: ttl}
}

func (d *DraftStore) SaveTask(ctx context.Context, partyID, task string) error {
	return d.client.Set(ctx, draftKey(partyID), task, d.ttl).Err()
}

// TakeTask returns the stored draft and deletes it. A missing draft returns
// an empty string, not an error: the flow treats it as an expired session.
func (d *DraftStore) TakeTask(ctx context.Context, partyID string) (string, error) {
	task, err := d.client.GetDel(ctx, draftKey(partyID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return task, nil
}

func (d *DraftStore) Clear(ctx context.Context, partyID string) {
	_ = d.client.Del(ctx, draftKey(partyID)).Err()
}

func draftKey(partyID string) string {
	return "draft:task:" + partyID
}
