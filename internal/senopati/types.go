// Package senopati provides an HTTP client for the Senopati text generation API.
package senopati

// DefaultURL is the public Senopati generate endpoint.
const DefaultURL = "https://senopati.its.ac.id/senopati-lokal-dev/generate"

// GenerateOptions contains sampling parameters for a generate call.
type GenerateOptions struct {
	MaxTokens   int     // Upper bound on generated tokens
	Temperature float64 // Sampling temperature
}

// DefaultGenerateOptions returns the options the service is tuned for.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		MaxTokens:   300,
		Temperature: 0.3,
	}
}

// generateRequest represents the request body for the generate endpoint.
type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// generateResponse represents the response from the generate endpoint.
type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}
