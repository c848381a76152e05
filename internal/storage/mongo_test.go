package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/catalog/catalogtest"
)

// The mongo suite needs a live server: MONGODB_TEST_URI=mongodb://localhost:27017
func TestMongoConformance(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	catalogtest.Run(t, func(t *testing.T) catalog.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		name := fmt.Sprintf("kinokod_test_%d", time.Now().UnixNano())
		m, err := NewMongo(ctx, uri, name, quietLog())
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = m.Database().Drop(context.Background())
			_ = m.Close(context.Background())
		})
		return m
	})
}
