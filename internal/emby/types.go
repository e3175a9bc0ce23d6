package emby

import "strings"

// DefaultBitrate is assumed when the media source does not report one,
// roughly 27.9 Mbit/s.
const DefaultBitrate = 27962026

// FileInfo describes one playable media source as reported by the
// metadata server. Path is the mount path; link-path mapping happens in
// the dispatcher.
type FileInfo struct {
	Path      string
	Size      int64
	Bitrate   int64
	Container string
	Name      string
	IsRemote  bool
}

// HeadLen is the size of the opening cache window: 15 seconds of playback
// at the nominal bitrate, truncated.
func (f *FileInfo) HeadLen() int64 {
	bitrate := f.Bitrate
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	return bitrate / 8 * 15
}

// Indirection reports whether the mount path is an indirection file whose
// contents or HTTP behavior yield the playback URL.
func (f *FileInfo) Indirection() bool {
	return strings.HasSuffix(strings.ToLower(f.Path), ".strm")
}

// Item kinds.
const (
	KindMovie   = "movie"
	KindEpisode = "episode"
)

// ItemInfo identifies a library item; series fields are set for episodes.
type ItemInfo struct {
	ItemID      string
	Kind        string
	SeriesID    string
	SeasonID    string
	IndexNumber int
}
