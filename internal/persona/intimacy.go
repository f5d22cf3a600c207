package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rcliao/companion-brain/internal/model"
)

// Level is a named intimacy band.
type Level string

const (
	LevelStranger     Level = "stranger"
	LevelAcquaintance Level = "acquaintance"
	LevelFriend       Level = "friend"
	LevelCloseFriend  Level = "close_friend"
	LevelFamily       Level = "family"
)

// Intimacy tuning.
const (
	BaseIntimacy = 50
	MinIntimacy  = 0
	MaxIntimacy  = 100
	DecayFactor  = 0.95

	touchHistoryCap  = 100
	touchHistoryKeep = 50
)

// ZoneBonus is the intimacy gained per touch of each zone.
var ZoneBonus = map[model.TouchZone]int{
	model.TouchHead:  5,
	model.TouchBack:  8,
	model.TouchChest: 10,
}

// InteractionBonus is the intimacy gained per interaction kind. Unknown
// kinds count as chat.
var InteractionBonus = map[string]int{
	"chat":  1,
	"audio": 2,
	"video": 3,
	"image": 1,
}

var levelBounds = []struct {
	level Level
	upper int
}{
	{LevelStranger, 20},
	{LevelAcquaintance, 40},
	{LevelFriend, 60},
	{LevelCloseFriend, 80},
	{LevelFamily, MaxIntimacy},
}

var levelDescriptions = map[Level]string{
	LevelStranger:     "we just met and are still getting to know each other",
	LevelAcquaintance: "we know each other and can talk about more things",
	LevelFriend:       "we are good friends and I trust you",
	LevelCloseFriend:  "we are close friends and I rely on you",
	LevelFamily:       "you are like family to me",
}

// LevelFor maps an intimacy value to its level.
func LevelFor(value int) Level {
	for _, b := range levelBounds {
		if value <= b.upper {
			return b.level
		}
	}
	return LevelFamily
}

// Describe returns a short sentence for a level.
func (l Level) Describe() string { return levelDescriptions[l] }

type touchReply struct {
	action, expression, text string
}

var touchReplies = map[Level][3]touchReply{
	LevelStranger: {
		{"A100", "E013", "Mm... that feels nice"},
		{"A101", "E014", "That is comfortable"},
		{"A102", "E015", "Ah... a little shy"},
	},
	LevelAcquaintance: {
		{"A103", "E016", "Thank you for caring"},
		{"A104", "E017", "That makes me feel safe"},
		{"A105", "E018", "I can feel your warmth"},
	},
	LevelFriend: {
		{"A106", "E019", "That makes me happy"},
		{"A107", "E020", "I feel good with you"},
		{"A108", "E021", "I really like that"},
	},
	LevelCloseFriend: {
		{"A109", "E022", "That gets me so excited"},
		{"A110", "E023", "That makes me feel blissful"},
		{"A111", "E024", "My heart is racing"},
	},
	LevelFamily: {
		{"A112", "E025", "I feel loved"},
		{"A113", "E026", "I feel so safe with you"},
		{"A114", "E027", "I couldn't be happier"},
	},
}

// TouchResponse is the intimacy-appropriate reaction to a touch.
type TouchResponse struct {
	Action     string  `json:"action"`
	Expression string  `json:"expression"`
	Text       string  `json:"text"`
	Level      Level   `json:"level"`
	Value      int     `json:"value"`
	Intensity  float64 `json:"intensity"`
}

// Change reports an intimacy update.
type Change struct {
	Old      int   `json:"old_value"`
	New      int   `json:"new_value"`
	Bonus    int   `json:"bonus"`
	OldLevel Level `json:"old_level"`
	NewLevel Level `json:"new_level"`
}

// LevelChanged reports whether the update crossed a level boundary.
func (c Change) LevelChanged() bool { return c.OldLevel != c.NewLevel }

// TouchEvent is one recorded touch.
type TouchEvent struct {
	Zone      model.TouchZone `json:"zone"`
	Bonus     int             `json:"bonus"`
	Timestamp time.Time       `json:"timestamp"`
	OldValue  int             `json:"old_value"`
	NewValue  int             `json:"new_value"`
}

// LevelChange is one recorded level transition.
type LevelChange struct {
	From      Level     `json:"old_level"`
	To        Level     `json:"new_level"`
	Timestamp time.Time `json:"timestamp"`
}

type intimacyState struct {
	OwnerID          string        `json:"robot_id"`
	Value            int           `json:"intimacy_value"`
	InteractionCount int           `json:"interaction_count"`
	LastUpdate       time.Time     `json:"last_update"`
	TouchHistory     []TouchEvent  `json:"touch_history"`
	LevelHistory     []LevelChange `json:"level_history"`
}

// IntimacyStats summarizes an owner's intimacy.
type IntimacyStats struct {
	OwnerID          string        `json:"robot_id"`
	Value            int           `json:"value"`
	Level            Level         `json:"level"`
	Description      string        `json:"description"`
	InteractionCount int           `json:"interaction_count"`
	TouchCount       int           `json:"touch_count"`
	LastUpdate       time.Time     `json:"last_update"`
	LevelHistory     []LevelChange `json:"level_history"`
}

// Intimacy tracks one owner's intimacy and persists every change to a JSON
// file. Safe for concurrent use.
type Intimacy struct {
	mu     sync.Mutex
	path   string
	state  intimacyState
	logger *slog.Logger
	now    func() time.Time
}

// Value returns the current intimacy value.
func (in *Intimacy) Value() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state.Value
}

// Level returns the current intimacy level.
func (in *Intimacy) Level() Level { return LevelFor(in.Value()) }

// Touch applies the zone bonus and records the touch.
func (in *Intimacy) Touch(zone model.TouchZone) (Change, error) {
	if !zone.Valid() {
		return Change{}, model.Invalid("touch_zone", "unknown zone %d", int(zone))
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	bonus := ZoneBonus[zone]
	c := in.apply(min(in.state.Value+bonus, MaxIntimacy), bonus)
	in.state.TouchHistory = append(in.state.TouchHistory, TouchEvent{
		Zone: zone, Bonus: bonus, Timestamp: in.now(), OldValue: c.Old, NewValue: c.New,
	})
	if len(in.state.TouchHistory) > touchHistoryCap {
		in.state.TouchHistory = in.state.TouchHistory[len(in.state.TouchHistory)-touchHistoryKeep:]
	}
	if err := in.save(); err != nil {
		return c, err
	}
	in.logger.Info("intimacy touched", "owner_id", in.state.OwnerID, "zone", zone.String(),
		"old", c.Old, "new", c.New, "level", c.NewLevel)
	return c, nil
}

// Interact applies the bonus of an interaction kind.
func (in *Intimacy) Interact(kind string) (Change, error) {
	bonus, ok := InteractionBonus[kind]
	if !ok {
		bonus = InteractionBonus["chat"]
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	c := in.apply(min(in.state.Value+bonus, MaxIntimacy), bonus)
	in.state.InteractionCount++
	if err := in.save(); err != nil {
		return c, err
	}
	in.logger.Debug("intimacy interaction", "owner_id", in.state.OwnerID, "kind", kind, "old", c.Old, "new", c.New)
	return c, nil
}

// Decay shrinks the value by DecayFactor.
func (in *Intimacy) Decay() (Change, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	decayed := max(int(float64(in.state.Value)*DecayFactor), MinIntimacy)
	if decayed >= in.state.Value {
		lvl := LevelFor(in.state.Value)
		return Change{Old: in.state.Value, New: in.state.Value, OldLevel: lvl, NewLevel: lvl}, nil
	}
	c := in.apply(decayed, decayed-in.state.Value)
	if err := in.save(); err != nil {
		return c, err
	}
	in.logger.Info("intimacy decayed", "owner_id", in.state.OwnerID, "old", c.Old, "new", c.New)
	return c, nil
}

// TouchResponse returns the reaction to a touch at the current level.
// Unknown zones react like a head touch.
func (in *Intimacy) TouchResponse(zone model.TouchZone) TouchResponse {
	value := in.Value()
	level := LevelFor(value)
	if !zone.Valid() {
		zone = model.TouchHead
	}
	r := touchReplies[level][zone]
	return TouchResponse{
		Action:     r.action,
		Expression: r.expression,
		Text:       r.text,
		Level:      level,
		Value:      value,
		Intensity:  min(float64(value)/50, 2),
	}
}

// Stats returns a summary of the tracker.
func (in *Intimacy) Stats() IntimacyStats {
	in.mu.Lock()
	defer in.mu.Unlock()
	level := LevelFor(in.state.Value)
	return IntimacyStats{
		OwnerID:          in.state.OwnerID,
		Value:            in.state.Value,
		Level:            level,
		Description:      level.Describe(),
		InteractionCount: in.state.InteractionCount,
		TouchCount:       len(in.state.TouchHistory),
		LastUpdate:       in.state.LastUpdate,
		LevelHistory:     append([]LevelChange(nil), in.state.LevelHistory...),
	}
}

// apply sets the new value and records a level transition. Callers hold mu.
func (in *Intimacy) apply(value, bonus int) Change {
	c := Change{Old: in.state.Value, New: value, Bonus: bonus, OldLevel: LevelFor(in.state.Value), NewLevel: LevelFor(value)}
	in.state.Value = value
	in.state.LastUpdate = in.now()
	if c.LevelChanged() {
		in.state.LevelHistory = append(in.state.LevelHistory, LevelChange{From: c.OldLevel, To: c.NewLevel, Timestamp: in.now()})
	}
	return c
}

// save writes the state atomically. Callers hold mu.
func (in *Intimacy) save() error {
	data, err := json.MarshalIndent(in.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode intimacy: %w", err)
	}
	tmp := in.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write intimacy: %w", err)
	}
	if err := os.Rename(tmp, in.path); err != nil {
		return fmt.Errorf("write intimacy: %w", err)
	}
	return nil
}

// IntimacyStore loads and caches per-owner trackers from a directory.
type IntimacyStore struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	owners map[string]*Intimacy
}

// NewIntimacyStore creates dir if needed.
func NewIntimacyStore(dir string, logger *slog.Logger) (*IntimacyStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create intimacy dir: %w", err)
	}
	return &IntimacyStore{dir: dir, logger: logger, owners: make(map[string]*Intimacy)}, nil
}

// For returns the owner's tracker, loading it from disk on first use. A
// missing or unreadable file starts at BaseIntimacy.
func (s *IntimacyStore) For(ownerID string) (*Intimacy, error) {
	if ownerID == "" {
		return nil, model.Invalid("owner", "owner id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.owners[ownerID]; ok {
		return in, nil
	}

	in := &Intimacy{
		path:   filepath.Join(s.dir, fmt.Sprintf("intimacy_%s.json", ownerID)),
		state:  intimacyState{OwnerID: ownerID, Value: BaseIntimacy},
		logger: s.logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	data, err := os.ReadFile(in.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		in.state.LastUpdate = in.now()
		if err := in.save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read intimacy: %w", err)
	default:
		if err := json.Unmarshal(data, &in.state); err != nil {
			s.logger.Warn("intimacy file unreadable, starting fresh", "owner_id", ownerID, "error", err)
			in.state = intimacyState{OwnerID: ownerID, Value: BaseIntimacy, LastUpdate: in.now()}
		}
		in.state.Value = max(MinIntimacy, min(MaxIntimacy, in.state.Value))
	}
	s.owners[ownerID] = in
	return in, nil
}
