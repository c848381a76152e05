package kv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("kinokod_kv_test_%d", time.Now().UnixNano()))
	defer func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	}()

	m, err := NewMongo(ctx, db.Collection("kv"))
	require.NoError(t, err)

	created, err := m.SetNX(ctx, "view:1:1", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = m.SetNX(ctx, "view:1:1", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	// Pretend the hour has passed without waiting for the reaper.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	created, err = m.SetNX(ctx, "view:1:1", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.True(t, created)
	m.now = time.Now

	require.NoError(t, m.Set(ctx, "top:day", []byte("cached"), 0))
	got, err := m.Get(ctx, "top:day")
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), got)

	require.NoError(t, m.DeletePrefix(ctx, "top:"))
	_, err = m.Get(ctx, "top:day")
	assert.ErrorIs(t, err, ErrNotFound)
}
