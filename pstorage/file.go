/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package pstorage

import (
	"bytes"
	"encoding/gob"
	"io/ioutil"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

// FileBased keeps the persisted state in a single gob file, rewritten
// atomically on every Save so a crash mid-write never leaves a torn file.
type FileBased struct {
	lock     sync.Mutex
	filepath string
}

func NewFileBasedPersistentStorage(filepath string) *FileBased {
	return &FileBased{filepath: filepath}
}

func (f *FileBased) Save(data interface{}) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return atomic.WriteFile(f.filepath, &buf)
}

func (f *FileBased) Load(data interface{}) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	raw, err := ioutil.ReadFile(f.filepath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, gob.NewDecoder(bytes.NewReader(raw)).Decode(data)
}
