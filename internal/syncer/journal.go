package syncer

import (
	"encoding/json"
	"io"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
)

// Journal persists the pending outbox queue between runs.
type Journal interface {
	Load() ([]Op, error)
	Save(ops []Op) error
}

type MemoryJournal struct {
	mu  sync.Mutex
	ops []Op
}

func (j *MemoryJournal) Load() ([]Op, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Op(nil), j.ops...), nil
}

func (j *MemoryJournal) Save(ops []Op) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append([]Op(nil), ops...)
	return nil
}

// FileJournal keeps the queue as one JSON array on a billy filesystem. It is
// not the local cache, so full product payloads may sit here.
type FileJournal struct {
	mu   sync.Mutex
	fs   billy.Filesystem
	name string
}

const DefaultJournalName = "outbox.json"

func NewFileJournal(fs billy.Filesystem, name string) *FileJournal {
	if name == "" {
		name = DefaultJournalName
	}
	return &FileJournal{fs: fs, name: name}
}

func (j *FileJournal) Load() ([]Op, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := j.fs.Open(j.name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	var ops []Op
	if err := json.Unmarshal(b, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (j *FileJournal) Save(ops []Op) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if ops == nil {
		ops = []Op{}
	}
	b, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	dir := path.Dir(j.name)
	if err := j.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := j.fs.TempFile(dir, ".outbox-")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = j.fs.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = j.fs.Remove(tmp.Name())
		return err
	}
	if err := j.fs.Remove(j.name); err != nil && !os.IsNotExist(err) {
		_ = j.fs.Remove(tmp.Name())
		return err
	}
	return j.fs.Rename(tmp.Name(), j.name)
}
