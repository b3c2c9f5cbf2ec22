package llm

import "strings"

// audioMimeTypes maps audio formats to the MIME type used when a
// provider transports audio as inline binary content.
var audioMimeTypes = map[AudioFormat]string{
	AudioFormatWav:      "audio/wav",
	AudioFormatMP3:      "audio/mpeg",
	AudioFormatLinear16: "audio/l16",
	AudioFormatFLAC:     "audio/flac",
	AudioFormatMulaw:    "audio/basic",
	AudioFormatAlaw:     "audio/alaw",
	AudioFormatAAC:      "audio/aac",
	AudioFormatOpus:     "audio/opus",
}

// AudioFormatToMimeType maps an audio format to its MIME type.
// Unknown formats fall back to application/octet-stream.
func AudioFormatToMimeType(format AudioFormat) string {
	if mime, ok := audioMimeTypes[format]; ok {
		return mime
	}
	return "application/octet-stream"
}

// MimeTypeToAudioFormat maps a MIME type back to an audio format.
func MimeTypeToAudioFormat(mimeType string) (AudioFormat, bool) {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	for format, mime := range audioMimeTypes {
		if mime == mimeType {
			return format, true
		}
	}
	// Common aliases seen in provider payloads.
	switch mimeType {
	case "audio/mp3":
		return AudioFormatMP3, true
	case "audio/x-wav", "audio/wave":
		return AudioFormatWav, true
	case "audio/pcm":
		return AudioFormatLinear16, true
	}
	return "", false
}

// SourcePartText flattens the textual substrate of a source part into a
// single citation block. Image content is dropped.
func SourcePartText(sp *SourcePart) string {
	var b strings.Builder
	b.WriteString(sp.Title)
	if sp.Source != "" {
		b.WriteString(" (")
		b.WriteString(sp.Source)
		b.WriteString(")")
	}
	for _, part := range sp.Content {
		if part.TextPart != nil && part.TextPart.Text != "" {
			b.WriteString("\n")
			b.WriteString(part.TextPart.Text)
		}
	}
	return b.String()
}

// DowncastSourceParts rewrites source parts as plain text for providers
// without a citation surface. Each source's textual substrate appears
// exactly once; other parts pass through unchanged.
func DowncastSourceParts(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, part := range parts {
		if part.SourcePart != nil {
			out = append(out, NewTextPart(SourcePartText(part.SourcePart)))
			continue
		}
		out = append(out, part)
	}
	return out
}

// DeltaIndexTracker synthesizes dense delta indices for providers that
// do not report a per-block index. A delta continuing the open part of
// the same variant and key shares its index; anything else opens the
// next unused index.
type DeltaIndexTracker struct {
	next    int
	openIdx int
	openTyp PartType
	openKey string
}

// NewDeltaIndexTracker returns a tracker with no open part.
func NewDeltaIndexTracker() *DeltaIndexTracker {
	return &DeltaIndexTracker{openIdx: -1}
}

// Append returns the index for a delta that may continue the open part.
func (t *DeltaIndexTracker) Append(typ PartType, key string) int {
	if t.openIdx >= 0 && t.openTyp == typ && t.openKey == key {
		return t.openIdx
	}
	return t.Open(typ, key)
}

// Open always allocates a fresh index and makes it the open part. Used
// for parts that arrive whole, e.g. Google function calls, so that two
// consecutive calls of the same tool get distinct indices.
func (t *DeltaIndexTracker) Open(typ PartType, key string) int {
	idx := t.next
	t.next++
	t.openIdx = idx
	t.openTyp = typ
	t.openKey = key
	return idx
}
