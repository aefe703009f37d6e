// Package prompt wraps huh for the few interactive questions the CLI asks.
package prompt

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// Option is one choice in a Select prompt.
type Option struct {
	Value string
	Label string
}

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// InputRequired shows a text input that rejects blank answers.
func InputRequired(title, placeholder string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&result).
		Validate(Required).
		Run()
	return strings.TrimSpace(result), err
}

// Select shows a single-select prompt with current preselected.
func Select(title string, options []Option, current string) (string, error) {
	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt.Label, opt.Value).Selected(opt.Value == current)
	}

	result := current
	err := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Value(&result).
		Run()
	return result, err
}

// Required is a huh validator for non-blank input.
func Required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}
