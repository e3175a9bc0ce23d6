package xhttp

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header    string
		wantStart int64
		wantEnd   int64
		wantErr   error
	}{
		{"bytes=0-", 0, OpenEnd, nil},
		{"bytes=100-200", 100, 200, nil},
		{"bytes=999999999-", 999999999, OpenEnd, nil},
		{"bytes=0-0", 0, 0, nil},
		{"bytes=5-10, 20-30", 5, 10, nil}, // first part wins
		{"", 0, 0, ErrRangeHeaderNotFound},
		{"octets=0-", 0, 0, ErrRangeHeaderInvalidFormat},
		{"bytes=-500", 0, 0, ErrRangeHeaderInvalidFormat}, // suffix form unsupported
		{"bytes=10-5", 0, 0, ErrRangeHeaderInvalidFormat},
		{"bytes=abc-", 0, 0, ErrRangeHeaderInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r, err := ParseRange(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, r.Start)
			assert.Equal(t, tt.wantEnd, r.End)
		})
	}
}

func TestRangeContentRange(t *testing.T) {
	open := &Range{Start: 100, End: OpenEnd}
	assert.Equal(t, "bytes 100-999/1000", open.ContentRange(1000))
	assert.Equal(t, int64(900), open.Length(1000))

	closed := &Range{Start: 0, End: 499}
	assert.Equal(t, "bytes 0-499/1000", closed.ContentRange(1000))
	assert.Equal(t, int64(500), closed.Length(1000))

	past := &Range{Start: 0, End: 5000}
	assert.Equal(t, "bytes 0-999/1000", past.ContentRange(1000))
}

func TestBuildRange(t *testing.T) {
	assert.Equal(t, "bytes=15000000-", BuildRange(15000000, OpenEnd))
	assert.Equal(t, "bytes=0-99", BuildRange(0, 99))
}

func TestParseContentRange(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Range", "bytes 200-1000/67589")

	cr, err := ParseContentRange(h)
	require.NoError(t, err)
	assert.Equal(t, int64(200), cr.Start)
	assert.Equal(t, int64(1000), cr.End)
	assert.Equal(t, int64(67589), cr.ObjSize)

	_, err = ParseContentRange(http.Header{})
	assert.ErrorIs(t, err, ErrContentRangeInvalid)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/x-matroska", ContentType("mkv"))
	assert.Equal(t, "video/mp4", ContentType("MP4"))
	assert.Equal(t, "application/octet-stream", ContentType("wmv"))
}
