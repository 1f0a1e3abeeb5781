package pstorage

import (
	"bytes"
	"encoding/gob"
	"sync"
)

type MemoryBased struct {
	lock sync.Mutex
	data []byte
}

func NewMemoryBasedPersistentStorage() *MemoryBased {
	return &MemoryBased{}
}

func (m *MemoryBased) Save(data interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return err
	}
	m.data = buf.Bytes()
	return nil
}

func (m *MemoryBased) Load(data interface{}) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if len(m.data) == 0 {
		return false, nil
	}
	dec := gob.NewDecoder(bytes.NewBuffer(m.data))
	return true, dec.Decode(data)
}
