// Package persona holds the robot's evolving character: OCEAN personality,
// intimacy with its owner, text emotion perception and growth stage.
package persona

import (
	"fmt"
	"strings"
	"sync"
)

// Trait indexes into an OCEAN vector.
type Trait int

const (
	Openness Trait = iota
	Conscientiousness
	Extraversion
	Agreeableness
	Neuroticism
)

var traitNames = [...]string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"}

var traitDescriptions = [...]string{"curious", "responsible", "outgoing", "kind", "sensitive"}

func (t Trait) String() string { return traitNames[t] }

// Vector is an OCEAN personality vector, each component in [-1, 1].
type Vector [5]float64

// DefaultVector is an outgoing personality.
var DefaultVector = Vector{0, 0, 1, 0, 0}

// DefaultMomentum keeps 90% of the old vector on every update.
const DefaultMomentum = 0.9

const traitThreshold = 0.3

// Behavior tags a user action that shapes personality.
type Behavior string

const (
	BehaviorPraise    Behavior = "praise"
	BehaviorCriticism Behavior = "criticism"
	BehaviorJoke      Behavior = "joke"
	BehaviorSupport   Behavior = "support"
	BehaviorTouch     Behavior = "touch"
)

// BehaviorDeltas maps behaviors to OCEAN deltas.
var BehaviorDeltas = map[Behavior]Vector{
	BehaviorPraise:    {0.1, 0.05, 0.1, 0.05, -0.05},
	BehaviorCriticism: {-0.1, -0.05, -0.1, -0.05, 0.1},
	BehaviorJoke:      {0.05, -0.05, 0.2, 0.1, -0.05},
	BehaviorSupport:   {0.05, 0.1, 0.05, 0.1, -0.05},
	BehaviorTouch:     {0.05, 0.05, 0.1, 0.1, -0.05},
}

// Speaking styles derived from extraversion.
const (
	StyleEnthusiastic = "enthusiastic"
	StyleNeutral      = "neutral"
	StyleCold         = "cold"
)

// Personality is one owner's OCEAN vector. Safe for concurrent use.
type Personality struct {
	mu       sync.RWMutex
	vector   Vector
	momentum float64
}

// NewPersonality returns a personality at DefaultVector.
func NewPersonality() *Personality {
	return &Personality{vector: DefaultVector, momentum: DefaultMomentum}
}

// Update blends the delta of b into the vector. Unknown behaviors are a
// no-op.
func (p *Personality) Update(b Behavior) {
	delta, ok := BehaviorDeltas[b]
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.vector {
		p.vector[i] = clamp(p.momentum*p.vector[i]+(1-p.momentum)*delta[i], -1, 1)
	}
}

// Vector returns a copy of the current vector.
func (p *Personality) Vector() Vector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vector
}

// Style returns the speaking style for the current extraversion.
func (p *Personality) Style() string {
	e := p.Vector()[Extraversion]
	switch {
	case e > 0.5:
		return StyleEnthusiastic
	case e < -0.5:
		return StyleCold
	}
	return StyleNeutral
}

// DominantTraits lists traits beyond ±0.3 as high_X or low_X, in OCEAN
// order.
func (p *Personality) DominantTraits() []string {
	v := p.Vector()
	var out []string
	for i, x := range v {
		switch {
		case x > traitThreshold:
			out = append(out, "high_"+traitNames[i])
		case x < -traitThreshold:
			out = append(out, "low_"+traitNames[i])
		}
	}
	return out
}

// TraitSummary describes the dominant traits in words.
func (p *Personality) TraitSummary() string {
	v := p.Vector()
	var parts []string
	for i, x := range v {
		switch {
		case x > traitThreshold:
			parts = append(parts, fmt.Sprintf("very %s (%s %.2f)", traitDescriptions[i], traitNames[i], x))
		case x < -traitThreshold:
			parts = append(parts, fmt.Sprintf("not very %s (%s %.2f)", traitDescriptions[i], traitNames[i], x))
		}
	}
	if len(parts) == 0 {
		return "balanced personality"
	}
	return strings.Join(parts, ", ")
}

// InferBehavior guesses the behavior behind an utterance and its mood. It
// returns false when nothing applies.
func InferBehavior(text, mood string) (Behavior, bool) {
	lower := strings.ToLower(text)
	switch {
	case mood == "angry" || strings.Contains(lower, "bad"):
		return BehaviorCriticism, true
	case mood == "happy" || mood == "excited" || strings.Contains(lower, "thanks"):
		return BehaviorPraise, true
	case strings.Contains(lower, "joke") || strings.Contains(lower, "haha"):
		return BehaviorJoke, true
	case mood == "sad":
		return BehaviorSupport, true
	}
	return "", false
}

// Personalities holds one Personality per owner.
type Personalities struct {
	mu     sync.Mutex
	owners map[string]*Personality
}

// NewPersonalities creates an empty registry.
func NewPersonalities() *Personalities {
	return &Personalities{owners: make(map[string]*Personality)}
}

// For returns the owner's personality, creating it on first use.
func (r *Personalities) For(ownerID string) *Personality {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.owners[ownerID]
	if !ok {
		p = NewPersonality()
		r.owners[ownerID] = p
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
