// Package behavior defines the closed vocabulary of child behaviors the
// analyzer pipeline is allowed to detect, and the visual/audio partition
// used to build prompts and to validate model output.
package behavior

// Modality is the sensory channel a behavior is observed through.
type Modality string

const (
	Visual Modality = "visual"
	Audio  Modality = "audio"
)

// IsValid reports whether m is one of the two recognized modalities.
func (m Modality) IsValid() bool {
	switch m {
	case Visual, Audio:
		return true
	default:
		return false
	}
}

// Label is one of the 14 closed-vocabulary behavior names.
type Label string

const (
	HandFlapping       Label = "hand-flapping"
	BodyRocking        Label = "body-rocking"
	HeadBanging        Label = "head-banging"
	Spinning           Label = "spinning"
	ToeWalking         Label = "toe-walking"
	HandBiting         Label = "hand-biting"
	ObjectLining       Label = "object-lining"
	RepetitiveBlinking Label = "repetitive-blinking"
	SelfHitting        Label = "self-hitting"
	Echolalia          Label = "echolalia"
	Humming            Label = "humming"
	Screeching         Label = "screeching"
	Grunting           Label = "grunting"
	VocalStimming      Label = "vocal-stimming"
)

// definition pairs a label with its modality and a one-sentence clinical
// description used both for prompt construction and documentation.
type definition struct {
	Label       Label
	Modality    Modality
	Description string
}

// vocabulary is the single source of truth for the 14 recognized behaviors,
// 9 visual and 5 audio. Order is stable; it drives prompt listing order.
var vocabulary = []definition{
	{HandFlapping, Visual, "Repetitive flapping or waving motion of one or both hands, typically at the wrist."},
	{BodyRocking, Visual, "Rhythmic forward-backward or side-to-side rocking of the trunk while seated or standing."},
	{HeadBanging, Visual, "Repeated striking of the head against a surface or object."},
	{Spinning, Visual, "Repeated whole-body rotation in place, standing or seated."},
	{ToeWalking, Visual, "Walking on the balls of the feet with heels persistently off the ground."},
	{HandBiting, Visual, "Placing the hand or fingers in the mouth and biting down repeatedly."},
	{ObjectLining, Visual, "Arranging objects into straight lines or precise rows rather than functional play."},
	{RepetitiveBlinking, Visual, "Rapid, repeated eye blinking not attributable to an external visual stimulus."},
	{SelfHitting, Visual, "Striking one's own body repeatedly with a hand or object."},
	{Echolalia, Audio, "Immediate or delayed repetition of words or phrases just heard, without apparent communicative intent."},
	{Humming, Audio, "Sustained, repetitive vocal humming without discernible words."},
	{Screeching, Audio, "Sudden, high-pitched vocalization, often repeated."},
	{Grunting, Audio, "Short, low-pitched repetitive vocalizations."},
	{VocalStimming, Audio, "Repetitive non-word vocal sounds (clicks, squeals, throat noises) used for self-stimulation."},
}

var (
	byLabel    = make(map[Label]definition, len(vocabulary))
	visual     []Label
	audioLabel []Label
)

func init() {
	for _, d := range vocabulary {
		byLabel[d.Label] = d
		if d.Modality == Visual {
			visual = append(visual, d.Label)
		} else {
			audioLabel = append(audioLabel, d.Label)
		}
	}
}

// IsValid reports whether label is a member of the closed vocabulary.
func IsValid(label Label) bool {
	_, ok := byLabel[label]
	return ok
}

// ModalityOf returns the modality a label belongs to, and whether the
// label was recognized at all.
func ModalityOf(label Label) (Modality, bool) {
	d, ok := byLabel[label]
	if !ok {
		return "", false
	}
	return d.Modality, true
}

// Definitions returns the full vocabulary table in stable declaration
// order, for prompt construction.
func Definitions() []struct {
	Label       Label
	Modality    Modality
	Description string
} {
	out := make([]struct {
		Label       Label
		Modality    Modality
		Description string
	}, len(vocabulary))
	for i, d := range vocabulary {
		out[i] = struct {
			Label       Label
			Modality    Modality
			Description string
		}{d.Label, d.Modality, d.Description}
	}
	return out
}

// VisualLabels returns the 9 visual-modality labels.
func VisualLabels() []Label {
	out := make([]Label, len(visual))
	copy(out, visual)
	return out
}

// AudioLabels returns the 5 audio-modality labels.
func AudioLabels() []Label {
	out := make([]Label, len(audioLabel))
	copy(out, audioLabel)
	return out
}
