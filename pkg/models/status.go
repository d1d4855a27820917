package models

// LinkKind classifies a seed URL
type LinkKind string

const (
	LinkKindTopic   LinkKind = "topic"   // A single quiz page
	LinkKindSubject LinkKind = "subject" // A subject index listing many chapters
	LinkKindChapter LinkKind = "chapter" // One chapter of a subject index, selected by URL fragment
)

// String implements fmt.Stringer for logging
func (k LinkKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// IsValid returns true if the kind is a known value
func (k LinkKind) IsValid() bool {
	switch k {
	case LinkKindTopic, LinkKindSubject, LinkKindChapter:
		return true
	}
	return false
}

// FragmentKind tags a classified output fragment
type FragmentKind string

const (
	FragmentChapterHeader FragmentKind = "chapter-header"
	FragmentTopicHeader   FragmentKind = "topic-header"
	FragmentQuestion      FragmentKind = "question"
	FragmentOption        FragmentKind = "option"
	FragmentAnswerBlock   FragmentKind = "answer-block"
	FragmentStandingImage FragmentKind = "standing-image"
)

// String implements fmt.Stringer for logging
func (k FragmentKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// IsValid returns true if the kind is a known value
func (k FragmentKind) IsValid() bool {
	switch k {
	case FragmentChapterHeader, FragmentTopicHeader, FragmentQuestion,
		FragmentOption, FragmentAnswerBlock, FragmentStandingImage:
		return true
	}
	return false
}

// ImageClass decides how an inlined image is sized in the PDF
type ImageClass string

const (
	ImageClassDiagram    ImageClass = "diagram-scaled" // Large figure, centered block
	ImageClassMathInline ImageClass = "math-inline"    // Small symbol flowing with text
)

// String implements fmt.Stringer for logging
func (c ImageClass) String() string {
	if c == "" {
		return "unset"
	}
	return string(c)
}

// ImageStatus represents the state of an image in the cache
type ImageStatus string

const (
	ImageStatusUnset    ImageStatus = ""          // Zero value = unset/unknown
	ImageStatusSuccess  ImageStatus = "success"   // Image fetched and encoded
	ImageStatusNotFound ImageStatus = "not_found" // Image not in cache
	ImageStatusDBError  ImageStatus = "db_error"  // Cache read failed
)

// String implements fmt.Stringer for logging
func (s ImageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}
