/*
Copyright © 2023 Rob Haswell <rob@haswell.co.uk>

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
package settings

import (
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ReadFile loads a settings image. Files shorter or longer than Size are
// accepted with a warning: short files leave the tail zeroed, long files are
// truncated.
func ReadFile(path string) (Block, error) {
	var b Block
	data, err := os.ReadFile(path)
	if err != nil {
		return b, errors.Wrap(err, "settings: read file")
	}
	if len(data) != Size {
		glog.Warningf("settings: %s is %d bytes, expected %d", path, len(data), Size)
	}
	copy(b[:], data)
	return b, nil
}

// WriteFile saves b to path.
func WriteFile(path string, b Block) error {
	return errors.Wrap(os.WriteFile(path, b[:], 0644), "settings: write file")
}
