package sdparams

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"image-browser/internal/imageformat"
)

// Keyword is the PNG text-chunk keyword that carries generation parameters.
const Keyword = "parameters"

var (
	// ErrEmpty is returned for empty or whitespace-only input.
	ErrEmpty = errors.New("empty parameter string")
	// ErrSectionNotFound is returned when the "Negative prompt:" or "Steps:"
	// marker is missing.
	ErrSectionNotFound = errors.New("parameter section not found")
)

const (
	negativeMarker = "\nNegative prompt:"
	stepsMarker    = "\nSteps:"
)

var (
	tagPattern   = regexp.MustCompile(`\(([^:]+):([0-9]+(?:\.[0-9]+)?)\)`)
	fieldPattern = regexp.MustCompile(`(Steps|Sampler|Schedule type|CFG scale|Seed|Size|Model|Denoising strength|Clip skip):\s*([^,]+)`)
)

// Tag is one prompt tag. Weight is nil for plain tags.
type Tag struct {
	Name   string   `json:"name"`
	Weight *float64 `json:"weight,omitempty"`
}

// Parameters is the parsed form of a parameters text. Field values are kept
// as the strings found in the text.
type Parameters struct {
	PositiveTags      []Tag  `json:"positive_tags"`
	NegativeTags      []Tag  `json:"negative_tags"`
	Steps             string `json:"steps,omitempty"`
	Sampler           string `json:"sampler,omitempty"`
	ScheduleType      string `json:"schedule_type,omitempty"`
	CFGScale          string `json:"cfg_scale,omitempty"`
	Seed              string `json:"seed,omitempty"`
	Size              string `json:"size,omitempty"`
	Model             string `json:"model,omitempty"`
	DenoisingStrength string `json:"denoising_strength,omitempty"`
	ClipSkip          string `json:"clip_skip,omitempty"`
	RawText           string `json:"raw_text"`
}

// Clone returns a deep copy of p.
func (p *Parameters) Clone() *Parameters {
	if p == nil {
		return nil
	}
	c := *p
	c.PositiveTags = cloneTags(p.PositiveTags)
	c.NegativeTags = cloneTags(p.NegativeTags)
	return &c
}

func cloneTags(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = Tag{Name: t.Name}
		if t.Weight != nil {
			w := *t.Weight
			out[i].Weight = &w
		}
	}
	return out
}

// Parse splits text into prompt tags and generation fields.
func Parse(text string) (*Parameters, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}

	positive, rest, ok := strings.Cut(text, negativeMarker)
	if !ok {
		return nil, fmt.Errorf("%q: %w", strings.TrimPrefix(negativeMarker, "\n"), ErrSectionNotFound)
	}
	negative, fields, ok := strings.Cut(rest, stepsMarker)
	if !ok {
		return nil, fmt.Errorf("%q: %w", strings.TrimPrefix(stepsMarker, "\n"), ErrSectionNotFound)
	}

	p := &Parameters{
		PositiveTags: parseTags(positive),
		NegativeTags: parseTags(negative),
		RawText:      text,
	}
	p.setFields("Steps:" + fields)
	return p, nil
}

// FromPNGText finds the parameters text among PNG text chunks and parses
// it. A PNG without the keyword yields ErrSectionNotFound.
func FromPNGText(chunks []imageformat.Chunk) (*Parameters, error) {
	text, ok := imageformat.FindText(chunks, Keyword)
	if !ok {
		return nil, fmt.Errorf("no %q text chunk: %w", Keyword, ErrSectionNotFound)
	}
	return Parse(text)
}

func parseTags(s string) []Tag {
	tags := []Tag{}
	for _, piece := range strings.Split(s, ",") {
		raw := strings.TrimSpace(piece)
		if raw == "" {
			continue
		}

		m := tagPattern.FindStringSubmatch(raw)
		if m == nil {
			tags = append(tags, Tag{Name: raw})
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		tag := Tag{Name: name}
		if w, err := strconv.ParseFloat(m[2], 64); err == nil {
			tag.Weight = &w
		}
		tags = append(tags, tag)
	}
	return tags
}

func (p *Parameters) setFields(section string) {
	for _, m := range fieldPattern.FindAllStringSubmatch(section, -1) {
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}
		switch m[1] {
		case "Steps":
			p.Steps = value
		case "Sampler":
			p.Sampler = value
		case "Schedule type":
			p.ScheduleType = value
		case "CFG scale":
			p.CFGScale = value
		case "Seed":
			p.Seed = value
		case "Size":
			p.Size = value
		case "Model":
			p.Model = value
		case "Denoising strength":
			p.DenoisingStrength = value
		case "Clip skip":
			p.ClipSkip = value
		}
	}
}
