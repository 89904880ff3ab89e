/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package configuration

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file at path whenever it changes on
// disk and hands the new Data to onReload, until ctx is canceled.
// Watching the containing directory rather than the file itself copes
// with editors and config-management tools that replace the file via
// rename instead of writing it in place.
func Watch(ctx context.Context, path string, onReload func(*Data)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				config, err := Load(abs)
				if err != nil {
					configurationLog.Error(err, "failed to reload configuration", "path", abs)
					continue
				}
				logReload(abs)
				onReload(config)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				configurationLog.Error(err, "configuration watcher error", "path", abs)
			}
		}
	}()

	return nil
}
