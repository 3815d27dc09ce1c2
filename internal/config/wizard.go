package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// DefaultPath is the configuration file written by the wizard.
const DefaultPath = ".regolith.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to regolith! Let's configure retrieval.")
	fmt.Println()

	providerPrompt := promptui.Select{
		Label: "Select query interpretation provider",
		Items: []string{"openai", "ollama", "local", "none"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"openai", "ollama", "local"},
	}
	_, embedStr, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}
	embedProvider := ProviderType(embedStr)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.EmbeddingProvider = embedProvider

	if provider != ProviderNone {
		preset := GetPreset(provider)
		cfg.Model, err = promptString("Interpretation model", preset.Model)
		if err != nil {
			return nil, err
		}
		if preset.BaseURL != "" {
			cfg.BaseURL, err = promptString("Interpretation endpoint", preset.BaseURL)
			if err != nil {
				return nil, err
			}
		}
	}

	embedPreset := GetPreset(embedProvider)
	cfg.EmbeddingModel, err = promptString("Embedding model", embedPreset.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	if embedPreset.BaseURL != "" {
		cfg.EmbeddingBaseURL, err = promptString("Embedding endpoint", embedPreset.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	cfg.DataDir, err = promptString("Data directory for indexes", cfg.DataDir)
	if err != nil {
		return nil, err
	}

	portStr, err := promptString("HTTP server port", strconv.Itoa(cfg.Server.Port))
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	cfg.Server.Port = port

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, p := range []ProviderType{provider, embedProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running regolith.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func promptString(label, def string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: def,
	}
	v, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", label, err)
	}
	return v, nil
}
