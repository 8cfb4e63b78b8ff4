package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

func TestParseID(t *testing.T) {
	key, err := parseID("6F9619FF-8B86-D011-B42D-00CF4FC964FF")
	require.NoError(t, err)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", key)

	_, err = parseID("post-1")
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = parseID("")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestParseIDs(t *testing.T) {
	keys := parseIDs([]string{"ghost", "6f9619ff-8b86-d011-b42d-00cf4fc964ff", ""})
	assert.Equal(t, []string{"6f9619ff-8b86-d011-b42d-00cf4fc964ff"}, keys)

	assert.Empty(t, parseIDs(nil))
}
