package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/komainu/pkg/adapters/memory"
	"github.com/m-mizutani/komainu/pkg/domain/interfaces"
)

func TestMemoryAdapter(t *testing.T) {
	ctx := context.Background()
	client := memory.New()

	t.Run("put and get round trip", func(t *testing.T) {
		gt.NoError(t, client.Put(ctx, "prompts/registry.json", []byte(`{"prompts":{}}`)))

		data, err := client.Get(ctx, "prompts/registry.json")
		gt.NoError(t, err)
		gt.Equal(t, string(data), `{"prompts":{}}`)
	})

	t.Run("get missing key returns not found", func(t *testing.T) {
		_, err := client.Get(ctx, "missing")
		gt.Error(t, err)
		gt.Equal(t, err, interfaces.ErrStorageKeyNotFound)
	})

	t.Run("stored data is isolated from caller mutations", func(t *testing.T) {
		original := []byte("original")
		gt.NoError(t, client.Put(ctx, "isolated", original))

		original[0] = 'X'

		data, err := client.Get(ctx, "isolated")
		gt.NoError(t, err)
		gt.Equal(t, string(data), "original")
	})
}
