package model

// Action is a motion code understood by the robot controller.
type Action struct {
	Code        string
	Name        string
	Description string
}

// Expression is a facial expression code.
type Expression struct {
	Code        string
	Name        string
	Description string
}

// Actions is the full motion catalog.
var Actions = []Action{
	{"A000", "breathing", "slow idle breathing"},
	{"A001", "nod", "nod head ±15°"},
	{"A002", "sway", "sway body ±10°"},
	{"A003", "hands_up", "raise hands 10°"},
	{"A004", "tilt_oscillate", "tilt head back and forth"},
	{"A005", "gaze_switch", "switch gaze left and right"},
	{"A006", "hands_still", "hold hands still"},
	{"A007", "head_down_slow", "lower head slowly"},
	{"A008", "arms_arc_in", "draw arms inward in an arc"},
	{"A009", "head_up_eyes_wide", "lift head with wide eyes"},
	{"A010", "hands_raise", "raise both hands quickly"},
	{"A011", "idle_tremble", "small shy tremble"},
	{"A012", "fast_head_shake", "shake head quickly"},
	{"A013", "hands_forward", "reach hands forward"},
	{"A014", "stiff_posture", "stiffen posture"},
	{"A015", "clenched_fists", "clench fists"},
	{"A016", "retreat_motion", "move backward"},
	{"A017", "cautious_movement", "move cautiously"},
	{"A018", "lean_back", "lean body back"},
	{"A019", "reject_gesture", "push hands away"},
	{"A020", "smooth_movement", "move smoothly"},
	{"A021", "gentle_breathing", "breathe gently"},
	{"A022", "slow_movement", "move slowly"},
	{"A023", "relaxed_posture", "relax posture"},
	{"A024", "lazy_movement", "move lazily"},
	{"A025", "lack_energy", "droop with low energy"},
	{"A100", "gentle_nod", "gentle nod"},
	{"A101", "soft_sway", "soft sway"},
	{"A102", "welcoming_gesture", "open welcoming gesture"},
	{"A103", "thoughtful_tilt", "thoughtful head tilt"},
	{"A104", "attentive_gaze", "attentive gaze"},
	{"A105", "calm_stillness", "calm stillness"},
	{"A106", "sad_lower", "lower body sadly"},
	{"A107", "protective_curl", "curl up protectively"},
	{"A108", "surprised_jump", "small surprised jump"},
	{"A109", "excited_raise", "raise arms excitedly"},
	{"A110", "shy_tremble", "shy tremble"},
	{"A111", "excited_shake", "shake with excitement"},
	{"A112", "loving_nod", "loving nod"},
	{"A113", "trusting_lean", "lean in trustingly"},
	{"A114", "intimate_embrace", "embracing hug motion"},
}

// Expressions is the full facial expression catalog.
var Expressions = []Expression{
	{"E000", "calm", "calm neutral face"},
	{"E001", "smile", "smile with blinking eyes"},
	{"E002", "squint", "squint and focus"},
	{"E003", "drooping_eyes", "drooping eyes"},
	{"E004", "avert", "tilt head and avert gaze"},
	{"E005", "wide_eyes", "wide sparkling eyes"},
	{"E006", "look_up", "look up in surprise"},
	{"E007", "frown", "frown"},
	{"E008", "fearful", "fearful eyes"},
	{"E009", "disgust", "disgusted face"},
	{"E010", "calm_smile", "calm smile"},
	{"E011", "tired_yawn", "tired yawn"},
	{"E012", "dull", "dull bored look"},
	{"E013", "polite_smile", "polite smile"},
	{"E014", "curious_look", "curious look"},
	{"E015", "reserved_face", "reserved face"},
	{"E016", "friendly_smile", "friendly smile"},
	{"E017", "interested_look", "interested look"},
	{"E018", "relaxed_face", "relaxed face"},
	{"E019", "happy_face", "happy face"},
	{"E020", "gentle_smile", "gentle smile"},
	{"E021", "soft_blink", "soft blink"},
	{"E022", "warm_expression", "warm expression"},
	{"E023", "thoughtful_look", "thoughtful look"},
	{"E024", "attentive_face", "attentive face"},
	{"E025", "loving_smile", "loving smile"},
	{"E026", "trusting_expression", "trusting expression"},
	{"E027", "intimate_gaze", "intimate gaze"},
}

// EmotionCode is the default motion and expression for a mood.
type EmotionCode struct {
	Actions    []string
	Expression string
}

// EmotionCodeKeys orders EmotionCodes for rendering.
var EmotionCodeKeys = []string{
	"happy", "confused", "sad", "shy", "excited", "surprised", "neutral",
	"angry", "fear", "disgust", "calm", "tired", "bored",
	"touch_zone_0", "touch_zone_1", "touch_zone_2",
}

// EmotionCodes maps moods and touch zones to default codes.
var EmotionCodes = map[string]EmotionCode{
	"happy":        {[]string{"A001", "A002", "A003"}, "E001"},
	"confused":     {[]string{"A004", "A005", "A006"}, "E002"},
	"sad":          {[]string{"A007", "A008"}, "E003"},
	"shy":          {[]string{"A011"}, "E004"},
	"excited":      {[]string{"A012", "A013"}, "E005"},
	"surprised":    {[]string{"A009", "A010"}, "E006"},
	"neutral":      {[]string{"A000"}, "E000"},
	"angry":        {[]string{"A014", "A015"}, "E007"},
	"fear":         {[]string{"A016", "A017"}, "E008"},
	"disgust":      {[]string{"A018", "A019"}, "E009"},
	"calm":         {[]string{"A020", "A021"}, "E010"},
	"tired":        {[]string{"A022", "A023"}, "E011"},
	"bored":        {[]string{"A024", "A025"}, "E012"},
	"touch_zone_0": {[]string{"A112"}, "E025"},
	"touch_zone_1": {[]string{"A113"}, "E026"},
	"touch_zone_2": {[]string{"A114"}, "E027"},
}

// CodesFor returns the default codes for mood, falling back to neutral.
func CodesFor(mood string) EmotionCode {
	if c, ok := EmotionCodes[mood]; ok {
		return c
	}
	return EmotionCodes[MoodNeutral]
}

// LookupAction returns the catalog entry for code.
func LookupAction(code string) (Action, bool) {
	for _, a := range Actions {
		if a.Code == code {
			return a, true
		}
	}
	return Action{}, false
}

// LookupExpression returns the catalog entry for code.
func LookupExpression(code string) (Expression, bool) {
	for _, e := range Expressions {
		if e.Code == code {
			return e, true
		}
	}
	return Expression{}, false
}

// ActionsFor resolves codes to catalog entries, skipping unknown codes.
func ActionsFor(codes ...string) []Action {
	var out []Action
	for _, c := range codes {
		if a, ok := LookupAction(c); ok {
			out = append(out, a)
		}
	}
	return out
}

// ExpressionsFor resolves codes to catalog entries, skipping unknown codes.
func ExpressionsFor(codes ...string) []Expression {
	var out []Expression
	for _, c := range codes {
		if e, ok := LookupExpression(c); ok {
			out = append(out, e)
		}
	}
	return out
}
