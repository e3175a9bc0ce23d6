package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		add    string
		in     string
		want   string
	}{
		{"strip and prepend", "/mnt", "/media", "/mnt/Movies/A (2020)/A.mkv", "/media/Movies/A (2020)/A.mkv"},
		{"strip only", "/mnt", "", "/mnt/TV/S01/e01.mkv", "/TV/S01/e01.mkv"},
		{"prepend only", "", "/alist", "/TV/S01/e01.mkv", "/alist/TV/S01/e01.mkv"},
		{"trailing slashes normalized", "/mnt/", "/alist/", "/mnt/a.mkv", "/alist/a.mkv"},
		{"prefix not present", "/data", "/alist", "/mnt/a.mkv", "/alist/mnt/a.mkv"},
		{"empty config is identity", "", "", "/mnt/a.mkv", "/mnt/a.mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.remove, tt.add, nil)
			assert.Equal(t, tt.want, m.Map(tt.in))
		})
	}
}

func TestBypass(t *testing.T) {
	m := New("", "", []string{"/mnt/local/", "/opt"})

	assert.True(t, m.Bypass("/mnt/local/movie.mkv"))
	assert.True(t, m.Bypass("/opt/show/e01.mkv"))
	assert.False(t, m.Bypass("/mnt/cloud/movie.mkv"))

	none := New("", "", nil)
	assert.False(t, none.Bypass("/anything"))
}
