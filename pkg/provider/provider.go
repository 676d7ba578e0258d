// Package provider implements the translation provider adapters.
package provider

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// Input is the text handed to a provider.
type Input struct {
	Text       string
	TargetLang string
}

// Output is a provider's translation with its self-assessed confidence.
type Output struct {
	Text         string
	Confidence   float64
	FinishReason string
}

// Adapter translates text through one external provider. Implementations
// must honor ctx cancellation and return *Error on failure.
type Adapter interface {
	Name() string
	Translate(ctx context.Context, in Input) (Output, error)
}

// clientTimeout bounds a call when the caller's context carries no deadline.
const clientTimeout = 60 * time.Second

const systemPrompt = "You are a professional translator. Translate the user's text into %s. " +
	"Preserve meaning, tone and formatting. Reply with the translation only, without notes or quotes."

func buildSystemPrompt(targetLang string) string {
	return fmt.Sprintf(systemPrompt, targetLang)
}

// maxTokensFor sizes the completion budget from the input length.
func maxTokensFor(text string) int {
	n := utf8.RuneCountInString(text)*4 + 256
	if n > 8192 {
		n = 8192
	}
	return n
}

func newHTTPClient() *resty.Client {
	return resty.New().
		SetTimeout(clientTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

var defaultTemperature = 0.2
