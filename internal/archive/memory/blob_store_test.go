package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresCopy(t *testing.T) {
	t.Parallel()

	store := New()
	data := []byte("snapshot")
	uri, err := store.PutObject(context.Background(), "u1/page.html", "text/html", data)
	require.NoError(t, err)
	assert.Equal(t, "mem://u1/page.html", uri)

	data[0] = 'X'
	obj, ok := store.Get("u1/page.html")
	require.True(t, ok)
	assert.Equal(t, []byte("snapshot"), obj.Data)
	assert.Equal(t, "text/html", obj.ContentType)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.PutObject(context.Background(), "", "text/html", nil)
	assert.Error(t, err)
	assert.Zero(t, store.Len())
}
