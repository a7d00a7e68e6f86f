package job

import (
	"fmt"
	"time"
)

// Category identifies one of the content pipelines. The set is closed: the
// webhook dispatcher, the retry engine and the sweeper all iterate or switch
// over it, and adding a pipeline means adding a descriptor here.
type Category string

const (
	CategoryIdeaEngine     Category = "idea_engine"
	CategoryBriefCreation  Category = "brief_creation"
	CategoryContentItem    Category = "content_processing"
	CategoryDerivative     Category = "derivative_generation"
	CategoryContentItemFix Category = "content_item_fix"
	CategoryGeneralContent Category = "general_content"
)

// Descriptor carries the per-category configuration the state machine is
// parametrized on.
type Descriptor struct {
	Category Category
	// Label is the human form used in error and notification text.
	Label string
	// Deadline is the gap between processing_started_at and
	// processing_timeout_at when a job enters processing.
	Deadline time.Duration
	// ManualFallback marks categories where a missing webhook endpoint is a
	// recoverable outcome: the job is parked in FallbackStatus for manual
	// reprocessing instead of failing the retry.
	ManualFallback bool
	FallbackStatus Status
}

var descriptors = map[Category]Descriptor{
	CategoryIdeaEngine: {
		Category: CategoryIdeaEngine,
		Label:    "idea",
		Deadline: 30 * time.Minute,
	},
	CategoryBriefCreation: {
		Category: CategoryBriefCreation,
		Label:    "brief",
		Deadline: 30 * time.Minute,
	},
	CategoryContentItem: {
		Category: CategoryContentItem,
		Label:    "content item",
		Deadline: 30 * time.Minute,
	},
	CategoryDerivative: {
		Category:       CategoryDerivative,
		Label:          "derivative",
		Deadline:       30 * time.Minute,
		ManualFallback: true,
		FallbackStatus: StatusDraft,
	},
	CategoryContentItemFix: {
		Category:       CategoryContentItemFix,
		Label:          "content suggestion",
		Deadline:       30 * time.Minute,
		ManualFallback: true,
		FallbackStatus: StatusReady,
	},
	CategoryGeneralContent: {
		Category: CategoryGeneralContent,
		Label:    "general content item",
		Deadline: 2 * time.Minute,
	},
}

// categoryOrder fixes iteration order for sweeps and the API.
var categoryOrder = []Category{
	CategoryIdeaEngine,
	CategoryBriefCreation,
	CategoryContentItem,
	CategoryDerivative,
	CategoryContentItemFix,
	CategoryGeneralContent,
}

// Describe returns the descriptor for a category.
func Describe(c Category) (Descriptor, bool) {
	d, ok := descriptors[c]
	return d, ok
}

// Categories returns all known categories in stable order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory validates a raw category string against the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := descriptors[c]; !ok {
		return "", fmt.Errorf("unknown job category %q", s)
	}
	return c, nil
}
