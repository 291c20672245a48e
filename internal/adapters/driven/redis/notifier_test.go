package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

func TestNotifier_Publish(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel("contact-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewNotifier(client, nil)
	sent := domain.NewNotification(domain.NotificationSuccess, "contact-1", "Draft saved")
	notifier.Notify(ctx, sent)

	select {
	case msg := <-sub.Channel():
		var got domain.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, domain.NotificationSuccess, got.Kind)
		assert.Equal(t, "Draft saved", got.Message)
	case <-time.After(time.Second):
		t.Fatal("notification was not published")
	}
}

func TestNotifier_Recent(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	notifier := NewNotifier(client, nil)

	for i := 0; i < recentNotifications+5; i++ {
		notifier.Notify(ctx, domain.NewNotification(domain.NotificationSuccess, "contact-1", fmt.Sprintf("n%d", i)))
	}
	notifier.Notify(ctx, domain.NewNotification(domain.NotificationError, "contact-2", "other"))

	recent, err := notifier.Recent(ctx, "contact-1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "n24", recent[0].Message)
	assert.Equal(t, "n22", recent[2].Message)

	all, err := notifier.Recent(ctx, "contact-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, recentNotifications)

	assert.Equal(t, recentTTL, mr.TTL(notifyRecentPrefix+"contact-1"))

	none, err := notifier.Recent(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNotifier_RecentSkipsMalformed(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := mr.Lpush(notifyRecentPrefix+"contact-1", "not json")
	require.NoError(t, err)
	notifier := NewNotifier(client, nil)
	notifier.Notify(ctx, domain.NewNotification(domain.NotificationSuccess, "contact-1", "ok"))

	recent, err := notifier.Recent(ctx, "contact-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "ok", recent[0].Message)
}
