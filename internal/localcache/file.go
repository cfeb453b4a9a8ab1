package localcache

import (
	"io"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

const (
	entriesDir = "entries"
	tmpPrefix  = ".tmp-"
)

// File keeps one file per key on a billy filesystem. Production uses osfs
// rooted at the cache directory; tests use memfs.
type File struct {
	mu       sync.Mutex
	fs       billy.Filesystem
	capacity int
}

func NewFile(fs billy.Filesystem, capacity int) (*File, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if err := fs.MkdirAll(entriesDir, 0o755); err != nil {
		return nil, storeerr.CacheUnavailable("open", entriesDir, err)
	}
	return &File{fs: fs, capacity: capacity}, nil
}

func fileName(key string) string { return path.Join(entriesDir, url.PathEscape(key)) }

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(key)
}

func (f *File) read(key string) (string, bool, error) {
	fh, err := f.fs.Open(fileName(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, storeerr.CacheUnavailable("get", key, err)
	}
	defer fh.Close()
	b, err := io.ReadAll(fh)
	if err != nil {
		return "", false, storeerr.CacheUnavailable("get", key, err)
	}
	return string(b), true, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	used, err := f.used()
	if err != nil {
		return storeerr.CacheUnavailable("set", key, err)
	}
	next := used + entrySize(key, value)
	if old, ok, err := f.read(key); err == nil && ok {
		next -= entrySize(key, old)
	}
	if next > f.capacity {
		return storeerr.CacheUnavailable("set", key, ErrQuotaExceeded)
	}

	// tulis ke file sementara dulu, baru ganti entry lama
	tmp, err := f.fs.TempFile(entriesDir, tmpPrefix)
	if err != nil {
		return storeerr.CacheUnavailable("set", key, err)
	}
	if _, err := io.WriteString(tmp, value); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(tmp.Name())
		return storeerr.CacheUnavailable("set", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(tmp.Name())
		return storeerr.CacheUnavailable("set", key, err)
	}
	if err := f.fs.Remove(fileName(key)); err != nil && !os.IsNotExist(err) {
		_ = f.fs.Remove(tmp.Name())
		return storeerr.CacheUnavailable("set", key, err)
	}
	if err := f.fs.Rename(tmp.Name(), fileName(key)); err != nil {
		_ = f.fs.Remove(tmp.Name())
		return storeerr.CacheUnavailable("set", key, err)
	}
	return nil
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.Remove(fileName(key)); err != nil && !os.IsNotExist(err) {
		return storeerr.CacheUnavailable("remove", key, err)
	}
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos, err := f.fs.ReadDir(entriesDir)
	if err != nil {
		return storeerr.CacheUnavailable("clear", "*", err)
	}
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if err := f.fs.Remove(path.Join(entriesDir, fi.Name())); err != nil && !os.IsNotExist(err) {
			return storeerr.CacheUnavailable("clear", fi.Name(), err)
		}
	}
	return nil
}

func (f *File) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos, err := f.fs.ReadDir(entriesDir)
	if err != nil {
		return nil, storeerr.CacheUnavailable("keys", "*", err)
	}
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		if k, ok := keyOf(fi); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *File) used() (int, error) {
	infos, err := f.fs.ReadDir(entriesDir)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, fi := range infos {
		if k, ok := keyOf(fi); ok {
			total += len(k) + int(fi.Size())
		}
	}
	return total, nil
}

func keyOf(fi os.FileInfo) (string, bool) {
	if fi.IsDir() || strings.HasPrefix(fi.Name(), tmpPrefix) {
		return "", false
	}
	k, err := url.PathUnescape(fi.Name())
	if err != nil {
		return "", false
	}
	return k, true
}
