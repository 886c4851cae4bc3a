package legacy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archive = `[
  {"message_id": 1, "date": 1600000000, "chat": {"id": 10, "type": "private"},
   "photo": [
     {"file_id": "s1", "file_unique_id": "us1", "width": 90, "height": 90},
     {"file_id": "b1", "file_unique_id": "ub1", "width": 800, "height": 600}
   ]},
  {"message_id": 2, "date": 1600000001, "chat": {"id": 10, "type": "private"}, "text": "meow"},
  {"message_id": 3, "date": 1600000002, "chat": {"id": 10, "type": "private"},
   "photo": [
     {"file_id": "s1-again", "file_unique_id": "us1", "width": 90, "height": 90},
     {"file_id": "b1-again", "file_unique_id": "ub1", "width": 800, "height": 600}
   ]},
  {"message_id": 4, "date": 1600000003, "chat": {"id": 10, "type": "private"},
   "photo": [{"file_id": "b2", "file_unique_id": "ub2", "width": 640, "height": 480}]}
]`

type fakeDownloader struct {
	data []byte
	err  error
	path string
}

func (f *fakeDownloader) Download(ctx context.Context, path string) ([]byte, error) {
	f.path = path
	return f.data, f.err
}

func TestParse(t *testing.T) {
	messages, err := Parse([]byte(archive))
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, 1, messages[0].MessageID)
	assert.Equal(t, 4, messages[1].MessageID)
	assert.Equal(t, int64(10), messages[0].Chat.ID)
}

func TestParse_Empty(t *testing.T) {
	messages, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, messages)

	messages, err = Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, messages)

	messages, err = Parse([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, err = Parse([]byte(`{"message_id": 1}`))
	assert.Error(t, err)
}

func TestLoader(t *testing.T) {
	remote := &fakeDownloader{data: []byte(archive)}
	messages, err := NewLoader(remote, "/archive").Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, "/archive", remote.path)

	remote.err = errors.New("not found")
	_, err = NewLoader(remote, "/archive").Load(context.Background())
	assert.Error(t, err)
}
