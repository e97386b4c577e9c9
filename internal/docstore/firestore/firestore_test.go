package firestore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapjournal/internal/docstore"
)

func TestTransforms(t *testing.T) {
	data, err := transforms([]docstore.Update{
		docstore.Set("email", "a@x.com"),
		docstore.ArrayUnion("following", "b@x.com"),
		docstore.ArrayUnion("followers"),
		docstore.ArrayRemove("tags", "x"),
		docstore.Increment("likes", -1),
		docstore.Set("timestamp", docstore.ServerTimestamp),
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", data["email"])
	assert.Equal(t, firestore.ArrayUnion("b@x.com"), data["following"])
	assert.Equal(t, firestore.ArrayUnion([]interface{}{}...), data["followers"])
	assert.Equal(t, firestore.ArrayRemove("x"), data["tags"])
	assert.Equal(t, firestore.Increment(int64(-1)), data["likes"])
	assert.Equal(t, firestore.ServerTimestamp, data["timestamp"])

	_, err = transforms([]docstore.Update{
		docstore.ArrayUnion("followers", "a"),
		docstore.ArrayUnion("followers", "b"),
	})
	assert.Error(t, err)
}

func TestToNative(t *testing.T) {
	out := toNative(docstore.Fields{
		"location":  docstore.Fields{"coords": docstore.Fields{"latitude": 1.5}},
		"timestamp": docstore.ServerTimestamp,
		"tags":      []string{"a"},
	})

	assert.Equal(t, map[string]interface{}{
		"coords": map[string]interface{}{"latitude": 1.5},
	}, out["location"])
	assert.Equal(t, firestore.ServerTimestamp, out["timestamp"])
	assert.Equal(t, []string{"a"}, out["tags"])
}

func TestSnapshot_NormalisesTimestamps(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ref := docstore.Collection("users").Doc("a@x.com").Collection("posts").Doc("p1")

	snap, err := snapshot(ref, map[string]interface{}{
		"caption":   "hi",
		"likes":     int64(2),
		"timestamp": ts,
		"tags":      []interface{}{"a", "b"},
	})
	require.NoError(t, err)

	var got struct {
		Caption   string    `json:"caption"`
		Likes     int       `json:"likes"`
		Timestamp time.Time `json:"timestamp"`
		Tags      []string  `json:"tags"`
	}
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, "hi", got.Caption)
	assert.Equal(t, 2, got.Likes)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, "p1", snap.Ref().ID())
}

func TestWithFloors(t *testing.T) {
	floors := []docstore.Update{docstore.IncrementFloor("likes", -1, 0)}
	data, err := transforms(append([]docstore.Update{docstore.Set("caption", "hi")}, floors...))
	require.NoError(t, err)
	assert.NotContains(t, data, "likes")
	assert.Equal(t, floors, floorUpdates([]docstore.Update{docstore.Increment("views", 1), floors[0]}))

	tests := []struct {
		name    string
		current map[string]interface{}
		want    interface{}
	}{
		{name: "decrements", current: map[string]interface{}{"likes": int64(2)}, want: int64(1)},
		{name: "stops at zero", current: map[string]interface{}{"likes": int64(0)}, want: int64(0)},
		{name: "missing field", current: map[string]interface{}{}, want: int64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := withFloors(data, tt.current, floors, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out["likes"])
			assert.Equal(t, "hi", out["caption"])
			assert.NotContains(t, data, "likes")
		})
	}
}
