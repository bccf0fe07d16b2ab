// Package models contains data types and constants for the Gemini generative-language API.
package models

import "strings"

// Endpoints for the Gemini API
const (
	DefaultBaseURL      = "https://generativelanguage.googleapis.com"
	GenerateContentPath = "/v1beta/models/%s:generateContent"
	APIKeyHeader        = "x-goog-api-key"
)

// Model represents an available Gemini model
type Model struct {
	Name string
	// Vision reports whether the model accepts image parts
	Vision bool
}

// Available models
var (
	ModelFlash     = Model{Name: "gemini-2.5-flash", Vision: true}
	ModelFlashLite = Model{Name: "gemini-2.5-flash-lite", Vision: true}
	ModelPro       = Model{Name: "gemini-2.5-pro", Vision: true}

	// DefaultModel is used when nothing else is configured
	DefaultModel = ModelFlash
)

// AllModels returns a list of all known models
func AllModels() []Model {
	return []Model{ModelFlash, ModelFlashLite, ModelPro}
}

// ModelFromName returns a Model by its name or alias.
// Unknown names are passed through so newer models work without a release.
func ModelFromName(name string) Model {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultModel
	case "fast", "flash", ModelFlash.Name:
		return ModelFlash
	case "lite", ModelFlashLite.Name:
		return ModelFlashLite
	case "pro", ModelPro.Name:
		return ModelPro
	default:
		return Model{Name: strings.TrimSpace(name), Vision: true}
	}
}

// DefaultHeaders returns the default headers for Gemini requests
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "geminiworkshop/" + Version,
	}
}

// Version is the client version reported in the User-Agent header
var Version = "0.1.0"
