package vault

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "legalsmart"

// ProviderAnthropic is the keyring account of the model API key.
const ProviderAnthropic = "anthropic"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = errors.New("vault: key not found")

// knownProviders is the list of providers checked by List().
var knownProviders = []string{ProviderAnthropic}

// wellKnownEnv maps providers to the variable their own SDKs read.
var wellKnownEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Vault provides secure API key storage using the OS keychain,
// with fallback to environment variables.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// Set stores an API key for the given provider in the OS keychain.
func (v *Vault) Set(provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("vault: refusing to store an empty key for %q", provider)
	}
	return keyring.Set(serviceName, provider, key)
}

// Get retrieves the API key for the given provider. It checks the OS
// keychain, then LEGALSMART_KEY_{UPPER(provider)}, then the provider's
// well-known variable such as ANTHROPIC_API_KEY.
func (v *Vault) Get(provider string) (string, error) {
	secret, err := keyring.Get(serviceName, provider)
	if err == nil && secret != "" {
		return secret, nil
	}

	for _, envKey := range envKeys(provider) {
		if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
			return val, nil
		}
	}

	return "", fmt.Errorf("%w for provider %q: not in keychain and %s not set",
		ErrNotFound, provider, strings.Join(envKeys(provider), " or "))
}

// Delete removes the API key for the given provider from the OS keychain.
func (v *Vault) Delete(provider string) error {
	if err := keyring.Delete(serviceName, provider); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w for provider %q", ErrNotFound, provider)
		}
		return err
	}
	return nil
}

// Source describes where a provider's key would be read from.
type Source struct {
	Provider string `json:"provider"`
	// Location is "keychain", an environment variable name, or empty when
	// no key is configured.
	Location string `json:"location"`
}

// List reports every known provider and where its key comes from.
func (v *Vault) List() ([]Source, error) {
	out := make([]Source, 0, len(knownProviders))
	for _, provider := range knownProviders {
		src := Source{Provider: provider}
		if secret, err := keyring.Get(serviceName, provider); err == nil && secret != "" {
			src.Location = "keychain"
		} else {
			for _, envKey := range envKeys(provider) {
				if os.Getenv(envKey) != "" {
					src.Location = envKey
					break
				}
			}
		}
		out = append(out, src)
	}
	return out, nil
}

// ResolveKeyRef parses a key reference and retrieves the corresponding API key.
// Supported formats:
//   - "keyring://legalsmart/<provider>" (preferred)
//   - "env:VARIABLE_NAME" (environment variable)
//   - "file:///path/to/key" (plain-text file)
func (v *Vault) ResolveKeyRef(keyRef string) (string, error) {
	// Format 1: keyring://legalsmart/<provider>
	if strings.HasPrefix(keyRef, "keyring://") {
		path := strings.TrimPrefix(keyRef, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://legalsmart/<provider>\")", keyRef)
		}
		return v.Get(parts[1])
	}

	// Format 2: env:VARIABLE_NAME
	if strings.HasPrefix(keyRef, "env:") {
		envVar := strings.TrimPrefix(keyRef, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("%w: environment variable %q is not set", ErrNotFound, envVar)
	}

	// Format 3: file:///path/to/key
	if strings.HasPrefix(keyRef, "file://") {
		filePath := strings.TrimPrefix(keyRef, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading key file %q: %w", filePath, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("key file %q is empty", filePath)
		}
		return key, nil
	}

	return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://legalsmart/<provider>\", \"env:VARIABLE_NAME\", or \"file:///path/to/key\")", keyRef)
}

func envKeys(provider string) []string {
	keys := []string{"LEGALSMART_KEY_" + strings.ToUpper(provider)}
	if wk, ok := wellKnownEnv[provider]; ok {
		keys = append(keys, wk)
	}
	return keys
}
