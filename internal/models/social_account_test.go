package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountKey(t *testing.T) {
	assert.Equal(t, "twitterAccount", AccountKey("twitter"))
	assert.Equal(t, "linkedinAccount", AccountKey("linkedin"))
	assert.Equal(t, "instagramAccount", AccountKey("instagram"))
}

func TestPostsKey(t *testing.T) {
	assert.Equal(t, "tweets", PostsKey("twitter"))
	assert.Equal(t, "posts", PostsKey("linkedin"))
	assert.Equal(t, "posts", PostsKey("instagram"))
}

func TestSocialAccountDocument(t *testing.T) {
	refresh := "rt-1"
	image := "https://pbs.example.com/jack.png"
	connectedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	acct := &SocialAccount{
		UserID:       "user-1",
		Provider:     "twitter",
		ExternalID:   "42",
		Username:     "jack",
		AccessToken:  "at-1",
		RefreshToken: &refresh,
		ProfileImage: &image,
		ConnectedAt:  connectedAt,
		Posts: PostList{
			{Content: "hello", CreatedAt: "2026-08-02T09:00:00Z", Status: "posted", ProviderPostID: "tweet-1"},
		},
	}

	doc := acct.Document()
	assert.Equal(t, "jack", doc["username"])
	assert.Equal(t, "at-1", doc["accessToken"])
	assert.Equal(t, "rt-1", doc["refreshToken"])
	assert.Equal(t, image, doc["profileImage"])
	assert.Equal(t, "2026-08-01T12:00:00Z", doc["connectedAt"])

	tweets, ok := doc["tweets"].(PostList)
	require.True(t, ok)
	require.Len(t, tweets, 1)
	assert.Equal(t, "tweet-1", tweets[0].ProviderPostID)

	_, hasPosts := doc["posts"]
	assert.False(t, hasPosts)
}

func TestSocialAccountDocumentOmitsEmptyOptionals(t *testing.T) {
	acct := &SocialAccount{
		Provider:    "linkedin",
		Username:    "jane",
		AccessToken: "at-2",
		ConnectedAt: time.Now().UTC(),
	}

	doc := acct.Document()
	_, hasRefresh := doc["refreshToken"]
	assert.False(t, hasRefresh)
	_, hasImage := doc["profileImage"]
	assert.False(t, hasImage)

	// nil history renders as an empty array, not null
	posts, ok := doc["posts"].(PostList)
	require.True(t, ok)
	assert.Empty(t, posts)
}

func TestPostRecordJSONKeys(t *testing.T) {
	mediaType := "image"
	record := PostRecord{
		Content:        "hello",
		CreatedAt:      "2026-08-02T09:00:00Z",
		Status:         "posted",
		ProviderPostID: "tweet-1",
		HasMedia:       true,
		MediaType:      &mediaType,
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "tweet-1", raw["providerPostId"])
	assert.Equal(t, "2026-08-02T09:00:00Z", raw["createdAt"])
	assert.Equal(t, true, raw["hasMedia"])
	assert.Equal(t, "image", raw["mediaType"])
}

func TestPostListScanValue(t *testing.T) {
	list := PostList{{Content: "one", Status: "posted"}}

	value, err := list.Value()
	require.NoError(t, err)

	var scanned PostList
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, list, scanned)

	var fromNil PostList
	require.NoError(t, fromNil.Scan(nil))
	assert.Equal(t, PostList{}, fromNil)

	var nilList PostList
	nilValue, err := nilList.Value()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(nilValue.([]byte)))
}
