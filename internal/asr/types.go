// Package asr provides an HTTP client for a self-hosted whisper-asr-webservice.
package asr

// Task selects what the service does with the audio.
type Task string

// Tasks supported by the service.
const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// TranscribeOptions contains optional parameters for a transcription request.
type TranscribeOptions struct {
	Language  string // ISO 639-1 hint; empty means auto-detect
	Task      Task   // Defaults to TaskTranscribe
	VADFilter bool   // Ask the service to drop non-speech before decoding
}

// Segment is one timed piece of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result contains a finished transcription.
type Result struct {
	Text     string
	Language string
	Segments []Segment
}

// asrResponse represents the JSON body returned by POST /asr?output=json.
type asrResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments,omitempty"`
	Error    string    `json:"error,omitempty"`
}
