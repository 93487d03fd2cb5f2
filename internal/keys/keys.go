// Package keys resolves provider API keys from the process environment.
// Keys are never persisted by the engine; the environment (optionally
// seeded from a .env file) is the single source of truth.
package keys

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envByPrefix maps the vendor half of a provider id to its API-key
// environment variable.
var envByPrefix = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"azure":      "AZURE_OPENAI_API_KEY",
	"google":     "GOOGLE_API_KEY",
	"gemini":     "GOOGLE_API_KEY",
	"vertex":     "GOOGLE_API_KEY",
	"mistral":    "MISTRAL_API_KEY",
	"cohere":     "COHERE_API_KEY",
	"groq":       "GROQ_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// keylessPrefixes are local runtimes that authenticate nothing.
var keylessPrefixes = map[string]bool{
	"ollama":  true,
	"localai": true,
	"echo":    true,
}

// LoadDotenv seeds the environment from .env when one exists. Variables
// already set in the environment win; a missing file is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// prefix returns the vendor half of a `vendor:model` id.
func prefix(providerID string) string {
	vendor, _, _ := strings.Cut(providerID, ":")
	return strings.ToLower(vendor)
}

// EnvVar names the environment variable holding the key for providerID.
// ok is false for keyless and unknown vendors.
func EnvVar(providerID string) (name string, ok bool) {
	name, ok = envByPrefix[prefix(providerID)]
	return name, ok
}

// Placeholder is the ${VAR} reference embedded in configs instead of the
// key value. Empty for keyless vendors.
func Placeholder(providerID string) string {
	name, ok := EnvVar(providerID)
	if !ok {
		return ""
	}
	return "${" + name + "}"
}

// Lookup returns the key for providerID from the environment.
func Lookup(providerID string) (string, bool) {
	name, ok := EnvVar(providerID)
	if !ok {
		return "", false
	}
	key := os.Getenv(name)
	return key, key != ""
}

// Validate checks that providerID's key is present. Keyless vendors and
// vendors without a known key variable always validate.
func Validate(providerID string) error {
	if keylessPrefixes[prefix(providerID)] {
		return nil
	}
	name, ok := EnvVar(providerID)
	if !ok {
		return nil
	}
	if os.Getenv(name) == "" {
		return fmt.Errorf("provider %s requires %s to be set", providerID, name)
	}
	return nil
}
