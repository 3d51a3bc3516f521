package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/firi/rpcendpoint/internal/rpc"
)

// FileWatcher recursively watches workDir and debounces a burst of
// changes into a single onChange callback, so a connected endpoint can
// be told its workspace changed without a notification per saved file.
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	workDir       string
	onChange      func([]string)
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	changedFiles  map[string]bool
	stop          chan struct{}
	log           rpc.Log
}

// NewFileWatcher starts watching workDir and its subdirectories,
// invoking onChange with the batch of changed paths after a short
// debounce window.
func NewFileWatcher(workDir string, onChange func([]string), log rpc.Log) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:      watcher,
		workDir:      workDir,
		onChange:     onChange,
		changedFiles: make(map[string]bool),
		stop:         make(chan struct{}),
		log:          log,
	}

	if err := fw.addDirectoryRecursive(workDir); err != nil {
		watcher.Close()
		return nil, err
	}

	go fw.watch()
	return fw, nil
}

func (fw *FileWatcher) addDirectoryRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if path != fw.workDir && (strings.HasPrefix(base, ".") || base == "node_modules" || base == "vendor") {
				return filepath.SkipDir
			}
			if err := fw.watcher.Add(path); err != nil {
				fw.log.Log(rpc.LogWarning, "file watcher: failed to watch "+path+": "+err.Error())
			}
		}
		return nil
	})
}

func (fw *FileWatcher) watch() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fw.handleFileChange(event.Name)
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					fw.addDirectoryRecursive(event.Name)
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Log(rpc.LogSevere, "file watcher error: "+err.Error())

		case <-fw.stop:
			return
		}
	}
}

func (fw *FileWatcher) handleFileChange(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	fw.changedFiles[path] = true

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(500*time.Millisecond, func() {
		fw.debounceMu.Lock()
		files := make([]string, 0, len(fw.changedFiles))
		for file := range fw.changedFiles {
			files = append(files, file)
		}
		fw.changedFiles = make(map[string]bool)
		fw.debounceMu.Unlock()

		if len(files) > 0 {
			fw.onChange(files)
		}
	})
}

// Stop stops the watcher and any pending debounce timer.
func (fw *FileWatcher) Stop() error {
	close(fw.stop)

	fw.debounceMu.Lock()
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceMu.Unlock()

	return fw.watcher.Close()
}
