// Package badgerstore persists the namespace in BadgerDB.
//
// Key layout:
//
//	f:<path>                 JSON FileInfo
//	c:<parent>\x00<name>     child index entry (empty value)
//	seq:fileid               file id sequence
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
)

const (
	prefixFile  = "f:"
	prefixChild = "c:"
	keySequence = "seq:fileid"

	sequenceBandwidth = 128
)

type Options struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

func Open(opts Options) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("%w: badger dir is required", ms.ErrInvalidParam)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", ms.ErrStoreUnavailable, err)
	}

	seq, err := db.GetSequence([]byte(keySequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: file id sequence: %v", ms.ErrStoreUnavailable, err)
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

func keyFile(path string) []byte {
	return []byte(prefixFile + path)
}

func keyChildPrefix(dir string) []byte {
	return []byte(prefixChild + dir + "\x00")
}

func keyChild(path string) []byte {
	return append(keyChildPrefix(ms.ParentPath(path)), ms.BaseName(path)...)
}

func getFile(txn *badger.Txn, path string) (*ms.FileInfo, error) {
	item, err := txn.Get(keyFile(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ms.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	var fi ms.FileInfo
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &fi)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &fi, nil
}

func putFile(txn *badger.Txn, fi *ms.FileInfo) error {
	data, err := json.Marshal(fi)
	if err != nil {
		return err
	}
	if err := txn.Set(keyFile(fi.FullPath), data); err != nil {
		return err
	}
	if fi.FullPath == ms.RootPath {
		return nil
	}
	return txn.Set(keyChild(fi.FullPath), nil)
}

func deleteFile(txn *badger.Txn, path string) error {
	if _, err := txn.Get(keyFile(path)); errors.Is(err, badger.ErrKeyNotFound) {
		return ms.ErrFileNotFound
	} else if err != nil {
		return err
	}
	if err := txn.Delete(keyFile(path)); err != nil {
		return err
	}
	if path == ms.RootPath {
		return nil
	}
	return txn.Delete(keyChild(path))
}

func (s *BadgerStore) Get(_ context.Context, path string) (*ms.FileInfo, error) {
	var fi *ms.FileInfo
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		fi, err = getFile(txn, path)
		return err
	})
	return fi, err
}

func (s *BadgerStore) Put(_ context.Context, fi *ms.FileInfo) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putFile(txn, fi)
	})
}

func (s *BadgerStore) Delete(_ context.Context, path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteFile(txn, path)
	})
}

func (s *BadgerStore) Rename(_ context.Context, oldPath string, fi *ms.FileInfo) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := deleteFile(txn, oldPath); err != nil {
			return err
		}
		return putFile(txn, fi)
	})
}

func (s *BadgerStore) List(_ context.Context, dirPath string) ([]ms.FileInfo, error) {
	var out []ms.FileInfo
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := keyChildPrefix(dirPath)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			child := dirPath + "/" + name
			if dirPath == ms.RootPath {
				child = "/" + name
			}
			fi, err := getFile(txn, child)
			if err != nil {
				return err
			}
			out = append(out, *fi)
		}
		return nil
	})
	return out, err
}

// NextID hands out file ids starting at 1. Id 0 belongs to the root directory.
func (s *BadgerStore) NextID(_ context.Context) (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ms.ErrStoreUnavailable, err)
	}
	return id + 1, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}
