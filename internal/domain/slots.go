package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Slot is one of the six ordered Round 2 positions: q1..q3 are aptitude
// questions, q4..q6 are the debug, trace and program challenges.
type Slot int

const (
	SlotAptitude1 Slot = iota + 1
	SlotAptitude2
	SlotAptitude3
	SlotDebug
	SlotTrace
	SlotProgram
)

// SlotCount is the number of slots in a Round 2 run.
const SlotCount = 6

// AllSlots lists every slot in display order.
var AllSlots = []Slot{SlotAptitude1, SlotAptitude2, SlotAptitude3, SlotDebug, SlotTrace, SlotProgram}

// AptitudeSlots lists the three aptitude slots.
var AptitudeSlots = []Slot{SlotAptitude1, SlotAptitude2, SlotAptitude3}

func (s Slot) Valid() bool {
	return s >= SlotAptitude1 && s <= SlotProgram
}

func (s Slot) IsAptitude() bool {
	return s >= SlotAptitude1 && s <= SlotAptitude3
}

func (s Slot) IsCoding() bool {
	return s >= SlotDebug && s <= SlotProgram
}

// Kind reports the question type held by the slot.
func (s Slot) Kind() SlotKind {
	switch s {
	case SlotDebug:
		return KindDebug
	case SlotTrace:
		return KindTrace
	case SlotProgram:
		return KindProgram
	default:
		return KindAptitude
	}
}

// Step is the submission step number: 0 for aptitude, 1..3 for coding challenges.
func (s Slot) Step() int {
	if s.IsCoding() {
		return int(s - SlotAptitude3)
	}
	return 0
}

// Next returns the slot unlocked by completing s. Aptitude k unlocks coding k+3,
// coding k+3 unlocks aptitude k+1. The program challenge unlocks nothing.
func (s Slot) Next() (Slot, bool) {
	switch {
	case s.IsAptitude():
		return s + 3, true
	case s == SlotDebug || s == SlotTrace:
		return s - 2, true
	default:
		return 0, false
	}
}

func (s Slot) String() string {
	return "q" + strconv.Itoa(int(s))
}

func (s Slot) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: slot %d", ErrInvalidInput, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSlot accepts "q1".."q6".
func ParseSlot(raw string) (Slot, error) {
	if !strings.HasPrefix(raw, "q") {
		return 0, fmt.Errorf("%w: slot %q", ErrInvalidInput, raw)
	}
	n, err := strconv.Atoi(raw[1:])
	if err != nil || !Slot(n).Valid() {
		return 0, fmt.Errorf("%w: slot %q", ErrInvalidInput, raw)
	}
	return Slot(n), nil
}

// SlotKind classifies what a slot asks of the team.
type SlotKind string

const (
	KindAptitude SlotKind = "aptitude"
	KindDebug    SlotKind = "debug"
	KindTrace    SlotKind = "trace"
	KindProgram  SlotKind = "program"
)

// CodingKinds lists the challenge kinds in slot order.
var CodingKinds = []SlotKind{KindDebug, KindTrace, KindProgram}

// CodingSlot maps a challenge kind to its slot.
func (k SlotKind) CodingSlot() (Slot, bool) {
	switch k {
	case KindDebug:
		return SlotDebug, true
	case KindTrace:
		return SlotTrace, true
	case KindProgram:
		return SlotProgram, true
	default:
		return 0, false
	}
}

// ParseChallengeKind validates a coding challenge kind.
func ParseChallengeKind(raw string) (SlotKind, error) {
	kind := SlotKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := kind.CodingSlot(); !ok {
		return "", fmt.Errorf("%w: challenge type %q", ErrInvalidInput, raw)
	}
	return kind, nil
}
