package mediainfo

import (
	"encoding/json"
	"fmt"
)

// Format describes a single encoding reported for a media item.
type Format struct {
	HasAudio    bool
	HasVideo    bool
	BitrateKbps float64
	// SizeBytes is the exact reported size, 0 when unreported.
	SizeBytes int64
	// SizeApproxBytes is the approximate reported size, 0 when unreported.
	SizeApproxBytes int64
	Container       string
	Quality         string
}

// EffectiveSize returns the size used for format comparison: the exact
// size when reported, otherwise the approximate one.
func (f Format) EffectiveSize() int64 {
	if f.SizeBytes > 0 {
		return f.SizeBytes
	}
	return f.SizeApproxBytes
}

// hasExactSize reports whether the descriptor carries an exact size.
func (f Format) hasExactSize() bool {
	return f.SizeBytes > 0
}

// Catalog is the immutable set of encodings resolved for a media item.
// It is never mutated after construction.
type Catalog struct {
	ID              string
	Title           string
	DurationSeconds float64
	Formats         []Format
}

// AudioInfo is the cacheable projection of a catalog: the best audio
// encoding plus size estimates for display.
type AudioInfo struct {
	MediaID                 string  `json:"mediaId"`
	Title                   string  `json:"title"`
	DurationSeconds         float64 `json:"durationSeconds"`
	EstimatedVideoSizeBytes int64   `json:"estimatedVideoSizeBytes"`
	EstimatedAudioSizeBytes int64   `json:"estimatedAudioSizeBytes"`
	BitrateKbps             float64 `json:"bitrateKbps"`
	ContainerFormat         string  `json:"containerFormat"`
	QualityLabel            string  `json:"qualityLabel"`
}

const (
	// aacSizeRatio is the observed shrink factor when transcoding a
	// source audio stream to 128 kbps AAC.
	aacSizeRatio = 0.75

	// DefaultBitrateKbps is assumed when the source does not report an
	// audio bitrate.
	DefaultBitrateKbps = 128

	// DefaultQuality is assumed when the source does not report a
	// quality label.
	DefaultQuality = "medium"

	// OutputContainer is the container of every delivered stream.
	OutputContainer = "m4a"
)

// SelectBestAudio picks the audio-only format with the largest reported
// size. An exact size beats an equal approximate one; remaining ties keep
// the first-seen format so selection is deterministic for a fixed
// catalog. Returns false when no audio-only format exists.
func SelectBestAudio(formats []Format) (Format, bool) {
	var best Format
	found := false

	for _, f := range formats {
		if !f.HasAudio || f.HasVideo {
			continue
		}
		if !found {
			best = f
			found = true
			continue
		}
		size, bestSize := f.EffectiveSize(), best.EffectiveSize()
		if size > bestSize {
			best = f
		} else if size == bestSize && f.hasExactSize() && !best.hasExactSize() {
			best = f
		}
	}

	return best, found
}

// SelectReferenceVideo picks the largest format that carries video.
// The result is used only to display a size comparison, never for
// retrieval. Returns false when the catalog has no video format.
func SelectReferenceVideo(formats []Format) (Format, bool) {
	var best Format
	found := false

	for _, f := range formats {
		if !f.HasVideo {
			continue
		}
		if !found || f.EffectiveSize() > best.EffectiveSize() {
			best = f
			found = true
		}
	}

	return best, found
}

// EstimateTranscodedSize estimates the output size after transcoding the
// given source to AAC. When the source size is unknown it falls back to a
// bitrate-derived estimate so a nonzero value is returned whenever one is
// derivable.
func EstimateTranscodedSize(sourceBytes int64, bitrateKbps, durationSeconds float64) int64 {
	if est := int64(float64(sourceBytes) * aacSizeRatio); est > 0 {
		return est
	}
	if sourceBytes > 0 {
		return sourceBytes
	}
	// Unknown source size: derive from bitrate and duration.
	return int64(bitrateKbps * 1000 / 8 * durationSeconds)
}

// ErrNoAudioFormats is returned by Resolve when a catalog contains no
// audio-only encoding.
var ErrNoAudioFormats = fmt.Errorf("no audio formats found")

// Resolve projects a catalog onto its best-audio summary.
func Resolve(c *Catalog) (*AudioInfo, error) {
	audio, ok := SelectBestAudio(c.Formats)
	if !ok {
		return nil, ErrNoAudioFormats
	}

	bitrate := audio.BitrateKbps
	if bitrate == 0 {
		bitrate = DefaultBitrateKbps
	}
	quality := audio.Quality
	if quality == "" {
		quality = DefaultQuality
	}

	audioSize := audio.EffectiveSize()
	videoSize := int64(0)
	if video, ok := SelectReferenceVideo(c.Formats); ok {
		videoSize = video.EffectiveSize()
	}
	if videoSize == 0 {
		// Display heuristic carried over from earlier revisions: a muxed
		// stream runs roughly three times the audio size.
		videoSize = audioSize * 3
	}

	return &AudioInfo{
		MediaID:                 c.ID,
		Title:                   c.Title,
		DurationSeconds:         c.DurationSeconds,
		EstimatedVideoSizeBytes: videoSize,
		EstimatedAudioSizeBytes: EstimateTranscodedSize(audioSize, bitrate, c.DurationSeconds),
		BitrateKbps:             bitrate,
		ContainerFormat:         OutputContainer,
		QualityLabel:            quality,
	}, nil
}

// rawInfo mirrors the subset of yt-dlp --dump-json output we consume.
type rawInfo struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Duration float64     `json:"duration"`
	Formats  []rawFormat `json:"formats"`
}

type rawFormat struct {
	ACodec         string  `json:"acodec"`
	VCodec         string  `json:"vcodec"`
	ABR            float64 `json:"abr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
}

// ParseCatalog builds a Catalog from yt-dlp JSON metadata output.
// Format order is preserved as reported, which the selector relies on
// for tie-breaking.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}
	if raw.ID == "" && raw.Title == "" {
		return nil, fmt.Errorf("metadata JSON missing id and title")
	}

	c := &Catalog{
		ID:              raw.ID,
		Title:           raw.Title,
		DurationSeconds: raw.Duration,
		Formats:         make([]Format, 0, len(raw.Formats)),
	}

	for _, rf := range raw.Formats {
		c.Formats = append(c.Formats, Format{
			HasAudio:        rf.ACodec != "" && rf.ACodec != "none",
			HasVideo:        rf.VCodec != "" && rf.VCodec != "none",
			BitrateKbps:     rf.ABR,
			SizeBytes:       rf.Filesize,
			SizeApproxBytes: rf.FilesizeApprox,
			Container:       rf.Ext,
			Quality:         rf.FormatNote,
		})
	}

	return c, nil
}
