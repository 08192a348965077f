package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hustle/internal/domain"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

// AptitudeQuestion is a multiple-choice question for one of the aptitude slots.
type AptitudeQuestion struct {
	Slot    domain.Slot
	Prompt  string
	Options []string
	Correct int
}

// IsCorrect reports whether the selected option index is the answer key.
func (q AptitudeQuestion) IsCorrect(answer int) bool {
	return answer == q.Correct
}

// ValidAnswer reports whether answer indexes one of the options.
func (q AptitudeQuestion) ValidAnswer(answer int) bool {
	return answer >= 0 && answer < len(q.Options)
}

// PublicQuestion is what a team sees: no answer key.
type PublicQuestion struct {
	Step     int      `json:"step"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (q AptitudeQuestion) Public() PublicQuestion {
	return PublicQuestion{
		Step:     int(q.Slot) - 1,
		Question: q.Prompt,
		Options:  append([]string(nil), q.Options...),
	}
}

// CodingChallenge is the prompt and grading rubric for a coding slot.
type CodingChallenge struct {
	Kind   domain.SlotKind
	Slot   domain.Slot
	Prompt string
	Rubric Rubric
}

// Catalog is the immutable set of Round 2 questions, built once at startup.
type Catalog struct {
	aptitude map[domain.Slot]AptitudeQuestion
	coding   map[domain.SlotKind]CodingChallenge
}

type fileFormat struct {
	Aptitude []struct {
		Step    int      `yaml:"step"`
		Prompt  string   `yaml:"prompt"`
		Options []string `yaml:"options"`
		Correct int      `yaml:"correct"`
	} `yaml:"aptitude"`
	Coding []struct {
		Kind   string        `yaml:"kind"`
		Prompt string        `yaml:"prompt"`
		Rubric PatternRubric `yaml:"rubric"`
	} `yaml:"coding"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var raw fileFormat
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		aptitude: make(map[domain.Slot]AptitudeQuestion, len(raw.Aptitude)),
		coding:   make(map[domain.SlotKind]CodingChallenge, len(raw.Coding)),
	}
	for _, q := range raw.Aptitude {
		slot := domain.Slot(q.Step + 1)
		if !slot.IsAptitude() {
			return nil, fmt.Errorf("%w: aptitude step %d", domain.ErrInvalidInput, q.Step)
		}
		if _, dup := c.aptitude[slot]; dup {
			return nil, fmt.Errorf("%w: duplicate aptitude step %d", domain.ErrInvalidInput, q.Step)
		}
		c.aptitude[slot] = AptitudeQuestion{Slot: slot, Prompt: q.Prompt, Options: q.Options, Correct: q.Correct}
	}
	for _, ch := range raw.Coding {
		kind, err := domain.ParseChallengeKind(ch.Kind)
		if err != nil {
			return nil, err
		}
		if _, dup := c.coding[kind]; dup {
			return nil, fmt.Errorf("%w: duplicate challenge %q", domain.ErrInvalidInput, kind)
		}
		slot, _ := kind.CodingSlot()
		c.coding[kind] = CodingChallenge{Kind: kind, Slot: slot, Prompt: ch.Prompt, Rubric: ch.Rubric}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every slot has exactly one well-formed entry.
func (c *Catalog) Validate() error {
	for _, slot := range domain.AptitudeSlots {
		q, ok := c.aptitude[slot]
		if !ok {
			return fmt.Errorf("%w: missing aptitude question %s", domain.ErrInvalidInput, slot)
		}
		if q.Prompt == "" {
			return fmt.Errorf("%w: aptitude question %s has no prompt", domain.ErrInvalidInput, slot)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: aptitude question %s needs at least two options", domain.ErrInvalidInput, slot)
		}
		if !q.ValidAnswer(q.Correct) {
			return fmt.Errorf("%w: aptitude question %s answer key out of range", domain.ErrInvalidInput, slot)
		}
	}
	for _, kind := range domain.CodingKinds {
		ch, ok := c.coding[kind]
		if !ok {
			return fmt.Errorf("%w: missing %s challenge", domain.ErrInvalidInput, kind)
		}
		if ch.Prompt == "" {
			return fmt.Errorf("%w: %s challenge has no prompt", domain.ErrInvalidInput, kind)
		}
		if ch.Rubric == nil {
			return fmt.Errorf("%w: %s challenge has no rubric", domain.ErrInvalidInput, kind)
		}
	}
	return nil
}

// Aptitude returns the question for an aptitude slot.
func (c *Catalog) Aptitude(slot domain.Slot) (AptitudeQuestion, error) {
	q, ok := c.aptitude[slot]
	if !ok {
		return AptitudeQuestion{}, fmt.Errorf("%w: aptitude slot %d", domain.ErrInvalidInput, int(slot))
	}
	return q, nil
}

// Challenge returns the coding challenge for kind.
func (c *Catalog) Challenge(kind domain.SlotKind) (CodingChallenge, error) {
	ch, ok := c.coding[kind]
	if !ok {
		return CodingChallenge{}, fmt.Errorf("%w: challenge type %q", domain.ErrInvalidInput, kind)
	}
	return ch, nil
}

// WithRubric returns a copy of the catalog grading kind with r.
func (c *Catalog) WithRubric(kind domain.SlotKind, r Rubric) (*Catalog, error) {
	ch, err := c.Challenge(kind)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: nil rubric", domain.ErrInvalidInput)
	}
	out := &Catalog{
		aptitude: make(map[domain.Slot]AptitudeQuestion, len(c.aptitude)),
		coding:   make(map[domain.SlotKind]CodingChallenge, len(c.coding)),
	}
	for k, v := range c.aptitude {
		out.aptitude[k] = v
	}
	for k, v := range c.coding {
		out.coding[k] = v
	}
	ch.Rubric = r
	out.coding[kind] = ch
	return out, nil
}
