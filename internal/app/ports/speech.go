package ports

// SpeechSink receives the lines that are read aloud.
type SpeechSink interface {
	Speak(line string) error
}
