package vulkan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/vkapp/engine/renderer/vulkan"
)

func TestReleaseStackUnwindsInReverse(t *testing.T) {
	s := vulkan.NewReleaseStack("test")
	var order []string
	for _, name := range []string{"instance", "surface", "device"} {
		name := name
		s.Push(name, func() { order = append(order, name) })
	}
	assert.Equal(t, 3, s.Len())

	s.Release()
	assert.Equal(t, []string{"device", "surface", "instance"}, order)
	assert.Zero(t, s.Len())

	s.Release()
	assert.Len(t, order, 3, "a second release runs nothing")
}
