// Package template holds utilities for working with templated request values.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrMissingKey occurs when storage is missing key.
var ErrMissingKey = errors.New("missing entry for a key")

// Engine is entity that has ability to work with templated values.
type Engine interface {
	// Replace replaces template values using provided storage.
	Replace(templateValue string, storage map[string]any) (string, error)
}

// Manager is entity that has ability to manage templates.
// URLs, headers and bodies of calls may carry template values which are
// replaced with values captured from earlier responses.
type Manager struct{}

func New() Manager {
	return Manager{}
}

// Replace replaces template values in templateValue with the ones provided in storage.
// Template values should exist between two brackets {{ }} preceded with dot, for example: "/v1/users/{{.USER_ID}}".
func (tm Manager) Replace(templateValue string, storage map[string]any) (string, error) {
	if storage == nil {
		return "", errors.New("missing values storage for template manager")
	}

	templ, err := template.New("call").Parse(templateValue)
	if err != nil {
		return "", err
	}

	var buff bytes.Buffer
	if err := templ.Execute(&buff, storage); err != nil {
		return "", err
	}

	strVal := buff.String()

	if strings.Contains(strVal, "<no value>") {
		return "", fmt.Errorf("%w, at least one of provided template values is not present in values storage", ErrMissingKey)
	}

	return strVal, nil
}
