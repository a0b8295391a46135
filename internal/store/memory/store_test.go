package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/store/memory"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-1", "New Chat")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "owner-1", created.OwnerID)
	require.Equal(t, "New Chat", created.Name)
	require.Empty(t, created.Messages)

	fetched, err := store.Get(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
}

func TestStore_Get(t *testing.T) {
	t.Run("should fail for an unknown conversation", func(t *testing.T) {
		store := memory.NewStore()

		_, err := store.Get(context.Background(), "owner-1", "missing")

		require.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("should not leak another owner's conversation", func(t *testing.T) {
		store := memory.NewStore()
		ctx := context.Background()

		created, err := store.Create(ctx, "owner-1", "Private")
		require.NoError(t, err)

		_, err = store.Get(ctx, "owner-2", created.ID)
		require.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("should return an independent copy", func(t *testing.T) {
		store := memory.NewStore()
		ctx := context.Background()

		created, err := store.Create(ctx, "owner-1", "Chat")
		require.NoError(t, err)
		require.NoError(t, store.AppendMessage(ctx, "owner-1", created.ID, domain.Message{
			Role: domain.RoleUser, Content: "hi",
		}))

		fetched, err := store.Get(ctx, "owner-1", created.ID)
		require.NoError(t, err)
		fetched.Messages[0].Content = "tampered"

		again, err := store.Get(ctx, "owner-1", created.ID)
		require.NoError(t, err)
		require.Equal(t, "hi", again.Messages[0].Content)
	})
}

func TestStore_AppendMessage(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-1", "Chat")
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(ctx, "owner-1", created.ID, domain.Message{
		Role: domain.RoleUser, Content: "hello",
	}))
	require.NoError(t, store.AppendMessage(ctx, "owner-1", created.ID, domain.Message{
		Role: domain.RoleAssistant, Content: "hi there", FromFallback: true,
	}))

	fetched, err := store.Get(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Messages, 2)
	require.Equal(t, domain.RoleAssistant, fetched.Messages[1].Role)
	require.True(t, fetched.Messages[1].FromFallback)

	err = store.AppendMessage(ctx, "owner-1", "missing", domain.Message{Role: domain.RoleUser, Content: "x"})
	require.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestStore_List(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first, err := store.Create(ctx, "owner-1", "First")
	require.NoError(t, err)
	second, err := store.Create(ctx, "owner-1", "Second")
	require.NoError(t, err)

	// Touch the older conversation so it moves to the front.
	require.NoError(t, store.AppendMessage(ctx, "owner-1", first.ID, domain.Message{
		Role: domain.RoleUser, Content: "bump",
	}))

	list, err := store.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)

	empty, err := store.List(ctx, "owner-2")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestStore_Rename(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-1", "Old Name")
	require.NoError(t, err)

	require.NoError(t, store.Rename(ctx, "owner-1", created.ID, "New Name"))

	fetched, err := store.Get(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	require.Equal(t, "New Name", fetched.Name)

	err = store.Rename(ctx, "owner-1", "missing", "whatever")
	require.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-1", "Chat")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "owner-1", created.ID))

	_, err = store.Get(ctx, "owner-1", created.ID)
	require.ErrorIs(t, err, domain.ErrConversationNotFound)

	err = store.Delete(ctx, "owner-1", created.ID)
	require.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestStore_DeleteAll(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := store.Create(ctx, "owner-1", "A")
	require.NoError(t, err)
	_, err = store.Create(ctx, "owner-1", "B")
	require.NoError(t, err)
	kept, err := store.Create(ctx, "owner-2", "Keep")
	require.NoError(t, err)

	require.NoError(t, store.DeleteAll(ctx, "owner-1"))

	list, err := store.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = store.Get(ctx, "owner-2", kept.ID)
	require.NoError(t, err)
}
