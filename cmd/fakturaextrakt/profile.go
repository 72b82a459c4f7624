package main

import (
	"os"

	"github.com/kvitto/fakturaextrakt"
	fprofile "github.com/kvitto/fakturaextrakt/profile"
)

// loadRunProfile loads the Profile named by --profile (or the built-in
// defaults when unset) and threads the command's logger into it, so the
// core logs through the invocation's logger rather than a global one.
func loadRunProfile() (fakturaextrakt.Profile, error) {
	if profilePath == "" {
		p := fakturaextrakt.DefaultProfile()
		p.Logger = logger
		return p, nil
	}
	p, err := fprofile.LoadYAML(profilePath)
	if err != nil {
		return fakturaextrakt.Profile{}, err
	}
	p.Logger = logger
	return p, nil
}

// maybeAIProvider wires an aiprovider/openai.Provider when OPENAI_API_KEY
// is set in the environment, otherwise returns nil — AI consultation
// stays fully optional.
func maybeAIProvider() fakturaextrakt.AIProvider {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	return newOpenAIProvider(key)
}
