package cli

import "fmt"

// ConfigError reports a problem with the loaded configuration. Source names
// the file or section the problem was found in.
type ConfigError struct {
	Source  string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Source, e.Message)
}

// CommandError wraps a failure from a subcommand so the root command prints
// a uniform message.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s command failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(source, message string) *ConfigError {
	return &ConfigError{
		Source:  source,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}
