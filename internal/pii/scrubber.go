package pii

import (
	"sort"
	"strings"
)

// Scrubber detects and redacts personal data from text.
type Scrubber interface {
	// Scrub redacts matches from content.
	Scrub(content string) *Result

	IsEnabled() bool
}

// Result describes one Scrub call.
type Result struct {
	// Scrubbed is the content with matches replaced.
	Scrubbed string `json:"scrubbed"`

	// Findings never carry the matched text.
	Findings []Finding     `json:"findings,omitempty"`
	ByRule   map[string]int `json:"by_rule,omitempty"`
}

// Finding is one redacted span of the original content.
type Finding struct {
	RuleID     string `json:"rule_id"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

type scrubber struct {
	config *Config
}

type span struct {
	start, end  int
	replacement string
}

// New creates a Scrubber. A nil cfg uses DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &scrubber{config: cfg}, nil
}

func (s *scrubber) IsEnabled() bool {
	return s.config.Enabled
}

func (s *scrubber) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: map[string]int{}}
	if !s.config.Enabled || content == "" {
		return result
	}

	var spans []span
	for _, rule := range s.config.compiledRules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			match := content[m[0]:m[1]]
			if s.isAllowed(match) || (rule.Check != nil && !rule.Check(match)) {
				continue
			}
			result.Findings = append(result.Findings, Finding{RuleID: rule.ID, StartIndex: m[0], EndIndex: m[1]})
			result.ByRule[rule.ID]++

			repl := rule.Replacement
			if repl == "" {
				repl = s.config.RedactionString
			}
			spans = append(spans, span{start: m[0], end: m[1], replacement: repl})
		}
	}
	if len(spans) == 0 {
		return result
	}

	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, sp := range mergeSpans(spans) {
		b.WriteString(content[prev:sp.start])
		b.WriteString(sp.replacement)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	result.Scrubbed = b.String()
	return result
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) isAllowed(match string) bool {
	for _, pattern := range s.config.compiledAllowList {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeSpans sorts spans and merges overlapping ones. A merged span keeps
// the replacement of its earliest, then longest, member; ties keep rule
// order.
func mergeSpans(spans []span) []span {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start < last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Nop leaves content unchanged.
type Nop struct{}

func (Nop) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (Nop) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Nop{}
)
