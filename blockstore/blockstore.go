// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockstore implements the append-only block file: blocks.dat is
// a concatenation of wire-format block messages, addressed by the byte
// offset at which they begin.
package blockstore

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/daglabs/halfnode/wire"
)

// ErrCorruptStore is returned by ReadAt when the bytes at an offset do not
// decode as a valid wire-format block message. This is a CorruptStore
// condition: the caller should treat it as fatal.
var ErrCorruptStore = errors.New("blockstore: corrupt block file")

// Store is the append-only block file store. A single *os.File backs both
// the writer and the reader; appends always occur at the current end of
// file, and reads seek to an arbitrary offset.
type Store struct {
	mtx  sync.Mutex
	file *os.File
	// magic is the network magic every stored message is framed with.
	magic [4]byte
}

// Open opens (creating if necessary) the block file at path.
func Open(path string, magic [4]byte) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "blockstore: open")
	}
	return &Store{file: f, magic: magic}, nil
}

// Append writes the full wire-format block message at the current end of
// the file and returns the offset at which it begins. The write is
// submitted to the OS (but not necessarily fsynced) before Append returns,
// so that an index entry referencing the returned offset is never a
// dangling reference on normal exit.
func (s *Store) Append(block *wire.MsgBlock) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "blockstore: seek to end")
	}

	if err := wire.WriteMessage(s.file, block, s.magic); err != nil {
		return 0, errors.Wrap(err, "blockstore: write message")
	}

	return offset, nil
}

// ReadAt seeks to offset and deserializes one block message.
func (s *Store) ReadAt(offset int64) (*wire.MsgBlock, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "blockstore: seek")
	}

	block := &wire.MsgBlock{}
	if err := wire.ReadMessage(s.file, block, s.magic); err != nil {
		return nil, errors.Wrapf(ErrCorruptStore, "offset %d: %s", offset, err)
	}

	return block, nil
}

// Close flushes and releases the underlying file handle.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.file.Sync(); err != nil {
		return errors.Wrap(err, "blockstore: sync on close")
	}
	return s.file.Close()
}
