package grid

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/vkapp/engine/core"
)

// ShaderWatcher reports writes to compiled shaders in a directory. It never
// touches Vulkan, the render thread picks the requests up through Requests.
type ShaderWatcher struct {
	fsnotify *fsnotify.Watcher
	requests chan string
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func NewShaderWatcher(dir string) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	sw := &ShaderWatcher{
		fsnotify: fsWatch,
		// one pending request is enough, later writes coalesce into it
		requests: make(chan string, 1),
		done:     make(chan struct{}),
	}
	sw.wg.Add(1)
	go sw.start()
	core.LogDebug("Watching %s for shader changes.", dir)
	return sw, nil
}

func (sw *ShaderWatcher) Requests() <-chan string {
	return sw.requests
}

// Close stops the watcher and waits for its goroutine. Safe to call twice.
func (sw *ShaderWatcher) Close() error {
	var err error
	sw.once.Do(func() {
		close(sw.done)
		sw.wg.Wait()
		err = sw.fsnotify.Close()
	})
	return err
}

func (sw *ShaderWatcher) start() {
	defer sw.wg.Done()
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Ext(e.Name) != ".spv" || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			select {
			case sw.requests <- filepath.Base(e.Name):
			default:
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %s", err)

		case <-sw.done:
			return
		}
	}
}
