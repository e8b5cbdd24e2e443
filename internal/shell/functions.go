package shell

import (
	_ "embed"
	"fmt"
)

//go:embed scripts/prompt.fish
var fishScript string

//go:embed scripts/prompt.bash
var bashScript string

//go:embed scripts/prompt.zsh
var zshScript string

// Supported lists the shells a prompt function can be generated for.
var Supported = []string{"fish", "zsh", "bash"}

// FunctionGenerator generates shell prompt functions.
type FunctionGenerator struct{}

// NewFunctionGenerator creates a new FunctionGenerator.
func NewFunctionGenerator() *FunctionGenerator {
	return &FunctionGenerator{}
}

// GenerateFish returns the fish shell function.
func (g *FunctionGenerator) GenerateFish() string {
	return fishScript
}

// GenerateZsh returns the zsh shell function.
func (g *FunctionGenerator) GenerateZsh() string {
	return zshScript
}

// GenerateBash returns the bash shell function.
func (g *FunctionGenerator) GenerateBash() string {
	return bashScript
}

// Generate returns the function for the named shell.
func (g *FunctionGenerator) Generate(shellName string) (string, error) {
	switch shellName {
	case "fish":
		return g.GenerateFish(), nil
	case "zsh":
		return g.GenerateZsh(), nil
	case "bash":
		return g.GenerateBash(), nil
	}
	return "", fmt.Errorf("unsupported shell: %s (supported: fish, zsh, bash)", shellName)
}
