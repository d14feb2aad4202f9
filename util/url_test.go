package util

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContentID(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("AAAAAAAAAAA", ExtractContentID("https://www.youtube.com/watch?v=AAAAAAAAAAA").UnwrapOr(""))
	assert.Equal("dQw4w9WgXcQ", ExtractContentID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1&index=3").UnwrapOr(""))
	assert.Equal("a-b_c123456", ExtractContentID("https://www.youtube.com/watch?feature=share&v=a-b_c123456").UnwrapOr(""))
	// Deterministic
	assert.Equal(ExtractContentID("https://www.youtube.com/watch?v=AAAAAAAAAAA"), ExtractContentID("https://www.youtube.com/watch?v=AAAAAAAAAAA"))

	assert.True(ExtractContentID("https://www.youtube.com/@channel/videos").IsNone())
	assert.True(ExtractContentID("https://www.youtube.com/watch?v=short").IsNone())
	assert.True(ExtractContentID("").IsNone())
}

func TestStripPlaylistParams(t *testing.T) {
	assert := assert_.New(t)

	cases := map[string]string{
		"https://www.youtube.com/watch?v=AAAAAAAAAAA&list=PL1":                 "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		"https://www.youtube.com/watch?v=AAAAAAAAAAA":                          "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		"https://www.youtube.com/watch?v=AAAAAAAAAAA&list=PL1&index=2&pp=iAQB": "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		"https://www.youtube.com/watch?v=AAAAAAAAAAA&t=42s&list=PL1":           "https://www.youtube.com/watch?v=AAAAAAAAAAA&t=42s",
		"https://www.youtube.com/watch?list=PL1&v=AAAAAAAAAAA":                 "https://www.youtube.com/watch?v=AAAAAAAAAAA",
	}
	for in, expected := range cases {
		out, err := StripPlaylistParams(in)
		if assert.NoError(err, in) {
			assert.Equal(expected, out, in)
		}
	}
}

func TestNormalizeVideoURL(t *testing.T) {
	assert := assert_.New(t)

	out, err := NormalizeVideoURL(DefaultBaseURL, "/watch?v=AAAAAAAAAAA&list=PL1")
	require.NoError(t, err)
	assert.Equal("https://www.youtube.com/watch?v=AAAAAAAAAAA", out)

	out, err = NormalizeVideoURL(DefaultBaseURL, "https://www.youtube.com/watch?v=BBBBBBBBBBB")
	require.NoError(t, err)
	assert.Equal("https://www.youtube.com/watch?v=BBBBBBBBBBB", out)

	_, err = NormalizeVideoURL(DefaultBaseURL, "/shorts/CCCCCCCCCCC")
	assert.ErrorIs(err, ErrNotVideoURL)
}

func TestVideoURL(t *testing.T) {
	assert_.Equal(t, "https://www.youtube.com/watch?v=AAAAAAAAAAA", VideoURL("AAAAAAAAAAA"))
}

func TestReferenceClassification(t *testing.T) {
	assert := assert_.New(t)

	assert.True(IsPlaylistURL("https://www.youtube.com/playlist?list=PL123"))
	assert.True(IsPlaylistURL("https://www.youtube.com/watch?v=AAAAAAAAAAA&list=PL123"))
	assert.False(IsPlaylistURL("https://www.youtube.com/watch?v=AAAAAAAAAAA"))
	assert.False(IsPlaylistURL("https://www.youtube.com/@someone/videos"))

	assert.True(IsChannelURL("https://www.youtube.com/@someone/videos"))
	assert.True(IsChannelURL("https://www.youtube.com/channel/UC123"))
	assert.True(IsChannelURL("https://www.youtube.com/c/name"))
	assert.False(IsChannelURL("https://www.youtube.com/playlist?list=PL123"))
	assert.False(IsChannelURL("/@someone"))
}
