package llm

import (
	"encoding/json"
	"strings"
)

// StreamAccumulator folds an ordered sequence of partial responses into
// the finalized ModelResponse. Deltas sharing an index merge in arrival
// order; usage and cost sum across partials.
//
// The zero value is not usable; call NewStreamAccumulator.
type StreamAccumulator struct {
	parts []*accumulatingPart
	usage *ModelUsage
	cost  *float64
}

// accumulatingPart is the in-flight state of one content slot.
type accumulatingPart struct {
	typ PartType

	text      strings.Builder
	signature *string
	id        *string

	toolCallID string
	toolName   string
	args       strings.Builder

	audio      strings.Builder
	format     *AudioFormat
	sampleRate *int
	channels   *int
	transcript strings.Builder

	image    strings.Builder
	mimeType *string
	width    *int
	height   *int
}

// NewStreamAccumulator returns an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// AddPartial merges one partial response. A delta index more than one
// past the current maximum is rejected as an invariant violation.
func (a *StreamAccumulator) AddPartial(partial *PartialModelResponse) error {
	if partial == nil {
		return nil
	}
	if partial.Usage != nil {
		a.usage = SumUsage(a.usage, partial.Usage)
	}
	if partial.Cost != nil {
		total := *partial.Cost
		if a.cost != nil {
			total += *a.cost
		}
		a.cost = &total
	}
	if partial.Delta == nil {
		return nil
	}
	return a.addDelta(partial.Delta)
}

func (a *StreamAccumulator) addDelta(delta *ContentDelta) error {
	if delta.Index < 0 {
		return NewInvariantError("delta index %d is negative", delta.Index)
	}
	if delta.Index > len(a.parts) {
		return NewInvariantError("delta index %d skips past %d accumulated parts", delta.Index, len(a.parts))
	}
	if delta.Index == len(a.parts) {
		a.parts = append(a.parts, &accumulatingPart{typ: delta.Part.Type()})
	}

	part := a.parts[delta.Index]
	if part.typ != delta.Part.Type() {
		return NewInvariantError("delta at index %d changes part type from %s to %s", delta.Index, part.typ, delta.Part.Type())
	}

	switch {
	case delta.Part.TextPartDelta != nil:
		d := delta.Part.TextPartDelta
		part.text.WriteString(d.Text)
		setIfEmpty(&part.id, d.ID)

	case delta.Part.ReasoningPartDelta != nil:
		d := delta.Part.ReasoningPartDelta
		part.text.WriteString(d.Text)
		setIfEmpty(&part.signature, d.Signature)
		setIfEmpty(&part.id, d.ID)

	case delta.Part.ToolCallPartDelta != nil:
		d := delta.Part.ToolCallPartDelta
		if d.ToolCallID != nil && part.toolCallID == "" {
			part.toolCallID = *d.ToolCallID
		}
		if d.ToolName != nil && part.toolName == "" {
			part.toolName = *d.ToolName
		}
		if d.Args != nil {
			part.args.WriteString(*d.Args)
		}
		setIfEmpty(&part.id, d.ID)

	case delta.Part.AudioPartDelta != nil:
		d := delta.Part.AudioPartDelta
		if d.AudioData != nil {
			part.audio.WriteString(*d.AudioData)
		}
		if d.Transcript != nil {
			part.transcript.WriteString(*d.Transcript)
		}
		setIfEmpty(&part.format, d.Format)
		setIfEmpty(&part.sampleRate, d.SampleRate)
		setIfEmpty(&part.channels, d.Channels)
		setIfEmpty(&part.id, d.ID)

	case delta.Part.ImagePartDelta != nil:
		d := delta.Part.ImagePartDelta
		if d.ImageData != nil {
			part.image.WriteString(*d.ImageData)
		}
		setIfEmpty(&part.mimeType, d.MimeType)
		setIfEmpty(&part.width, d.Width)
		setIfEmpty(&part.height, d.Height)
		setIfEmpty(&part.id, d.ID)

	default:
		return NewInvariantError("delta at index %d has no variant set", delta.Index)
	}
	return nil
}

// Usage returns the summed usage so far, nil when none was reported.
func (a *StreamAccumulator) Usage() *ModelUsage {
	return a.usage
}

// Parts materializes the current content array. Safe to call mid-stream
// for an incremental view.
func (a *StreamAccumulator) Parts() ([]Part, error) {
	parts := make([]Part, 0, len(a.parts))
	for i, p := range a.parts {
		part, err := p.finalize()
		if err != nil {
			return nil, NewInvariantError("part at index %d: %v", i, err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// Response finalizes the stream into a ModelResponse.
func (a *StreamAccumulator) Response() (*ModelResponse, error) {
	parts, err := a.Parts()
	if err != nil {
		return nil, err
	}
	return &ModelResponse{Content: parts, Usage: a.usage, Cost: a.cost}, nil
}

func (p *accumulatingPart) finalize() (Part, error) {
	switch p.typ {
	case PartTypeText:
		return Part{TextPart: &TextPart{Text: p.text.String(), ID: p.id}}, nil

	case PartTypeReasoning:
		return Part{ReasoningPart: &ReasoningPart{Text: p.text.String(), Signature: p.signature, ID: p.id}}, nil

	case PartTypeToolCall:
		var args json.RawMessage
		if raw := p.args.String(); raw != "" {
			if !json.Valid([]byte(raw)) {
				return Part{}, NewInvariantError("tool call %q arguments are not valid JSON", p.toolName)
			}
			args = json.RawMessage(raw)
		}
		return Part{ToolCallPart: &ToolCallPart{
			ToolCallID: p.toolCallID,
			ToolName:   p.toolName,
			Args:       args,
			ID:         p.id,
		}}, nil

	case PartTypeAudio:
		part := &AudioPart{
			AudioData:  p.audio.String(),
			SampleRate: p.sampleRate,
			Channels:   p.channels,
			ID:         p.id,
		}
		if p.format != nil {
			part.Format = *p.format
		}
		if t := p.transcript.String(); t != "" {
			part.Transcript = &t
		}
		return Part{AudioPart: part}, nil

	case PartTypeImage:
		part := &ImagePart{
			ImageData: p.image.String(),
			Width:     p.width,
			Height:    p.height,
			ID:        p.id,
		}
		if p.mimeType != nil {
			part.MimeType = *p.mimeType
		}
		return Part{ImagePart: part}, nil
	}
	return Part{}, NewInvariantError("unknown part type %q", p.typ)
}

// setIfEmpty assigns src to dst on a first-seen-non-empty basis.
func setIfEmpty[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

// Collect drains a StreamResponse through a fresh accumulator and
// returns the finalized response.
func Collect(stream StreamResponse) (*ModelResponse, error) {
	acc := NewStreamAccumulator()
	for partial, err := range stream {
		if err != nil {
			return nil, err
		}
		if err := acc.AddPartial(partial); err != nil {
			return nil, err
		}
	}
	return acc.Response()
}
