//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderStages = []string{"vert", "frag"}

// Compiles the GLSL sources in shaders/ to SPIR-V next to them.
func (Build) Shaders() error {
	for _, stage := range shaderStages {
		src := "grid." + stage
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withDir("shaders"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the application binary.
func (Build) App() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", binaryName, "."), withStream())
	return err
}
