package tts

// ElevenLabsVoices maps preset names to ElevenLabs voice IDs.
var ElevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // calm
	"aria":      "9BWtsMINqrJLrRacOk9x",
	"sarah":     "EXAVITQu4vr4xnSDxMaL",
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"adam":      "pNInz6obpgDQGcFmaJgB",
}

// DefaultElevenLabsVoice is a slow, clear voice suited to guidance.
const DefaultElevenLabsVoice = "rachel"

// ResolveElevenLabsVoice maps a preset name to its ID and passes raw IDs through.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}
