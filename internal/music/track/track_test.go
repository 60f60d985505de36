package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html entities", "Tom &amp; Jerry &quot;OST&quot;", `Tom & Jerry "OST"`},
		{"brackets to fullwidth", "[MV] Song [Official]", "【MV】 Song 【Official】"},
		{"braces to parens", "Song {Remix}", "Song (Remix)"},
		{"underscore and double space", "some_title  here", "some title here"},
		{"asterisk", "*loud*", `"loud"`},
		{"plain passes through", "Plain Title", "Plain Title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.in))
		})
	}
}

func TestCachedFlag(t *testing.T) {
	tr := &Track{Kind: KindStreamTrack, ProviderID: "123"}
	assert.False(t, tr.Cached())
	tr.MarkCached()
	assert.True(t, tr.Cached())
}

func TestDurationString(t *testing.T) {
	assert.Equal(t, "3:25", (&Track{DurationSec: 205}).DurationString())
	assert.Equal(t, "1:00:01", (&Track{DurationSec: 3601}).DurationString())
	assert.Equal(t, "0:00", (&Track{}).DurationString())
}

func TestPreferredFormatURL(t *testing.T) {
	tr := &Track{Formats: []Format{
		{Ext: "webm", URL: "http://a"},
		{Ext: "m4a", URL: "http://b"},
	}}
	assert.Equal(t, "http://b", tr.PreferredFormatURL())

	tr = &Track{Formats: []Format{{Ext: "webm", URL: "http://a"}}}
	assert.Equal(t, "http://a", tr.PreferredFormatURL())

	assert.Equal(t, "", (&Track{}).PreferredFormatURL())
}
