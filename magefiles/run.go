//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the application.
func (Run) App() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run vk-app...")
	if _, err := executeCmd("go", withArgs("run", "."), withStream()); err != nil {
		return err
	}
	return nil
}
