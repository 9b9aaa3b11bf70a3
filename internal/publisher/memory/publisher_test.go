package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id1, err := p.Publish(context.Background(), "changes", map[string]string{"url": "https://example.com"})
	require.NoError(t, err)
	id2, err := p.Publish(context.Background(), "changes", "second")
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "changes", msgs[0].Topic)
	assert.Equal(t, "second", msgs[1].Payload)
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "t", 1)
	require.NoError(t, err)

	first := p.Messages()
	first[0].Topic = "mutated"
	assert.Equal(t, "t", p.Messages()[0].Topic)
}
