package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/submitflow/submitflow/runner"
	"github.com/submitflow/submitflow/types"
)

// loadCredentials reads the optional YAML credentials file, keyed by the
// credentials_key stored on directories:
//
//	betalist:
//	  username: agent
//	  password: hunter2
//
// An unset path yields an empty set; directories that require a login will
// then submit without credentials in the prompt.
func loadCredentials(path string) (runner.StaticCredentials, error) {
	if path == "" {
		return runner.StaticCredentials{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", path, err)
	}

	var creds map[string]types.Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	return runner.StaticCredentials(creds), nil
}
