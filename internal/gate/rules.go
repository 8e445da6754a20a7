package gate

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules is the declarative lexicon the gate evaluates. Keeping it data
// rather than code lets the domain policy be tuned and tested without
// touching orchestration.
//
// Precedence, highest first: hard exclusions, history carry-over,
// keyword/pattern admission, default reject.
type Rules struct {
	HardExclusions   []string `yaml:"hard_exclusions"`
	Greetings        []string `yaml:"greetings"`
	DomainTerms      []string `yaml:"domain_terms"`
	Countries        []string `yaml:"countries"`
	FollowUpPatterns []string `yaml:"follow_up_patterns"`
	TopicChanges     []string `yaml:"topic_changes"`
	VolatilePatterns []string `yaml:"volatile_patterns"`
}

// LoadRules reads the rule tables from path, falling back to the embedded
// defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	data := defaultRules
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("reading gate rules: %w", err)
		}
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing gate rules: %w", err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *Rules) Validate() error {
	if len(r.DomainTerms) == 0 {
		return fmt.Errorf("gate rules: domain_terms must not be empty")
	}
	for _, p := range r.FollowUpPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("gate rules: bad follow-up pattern %q: %w", p, err)
		}
	}
	for _, p := range r.VolatilePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("gate rules: bad volatile pattern %q: %w", p, err)
		}
	}
	return nil
}
