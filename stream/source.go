/*
NAME
  source.go

DESCRIPTION
  source.go provides Source, the ingress interface the pipeline's receiver
  goroutine reads framed messages from, and a file-backed implementation for
  tests and offline replay.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package stream

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ausocean/utils/logging"
)

// Source is the ingress primitive the specification requires of the
// transport collaborator: "read_next_message() -> bytes". The transport
// itself (WebSocket, TCP, pipe) is out of scope; Source is the seam.
type Source interface {
	// ReadMessage returns the next message's bytes, blocking until one is
	// available. It returns io.EOF when the peer has closed the connection
	// normally.
	ReadMessage() ([]byte, error)

	// Close releases any resources held by the source.
	Close() error
}

// FileSource is a Source backed by a file of length-prefixed messages,
// useful for tests and offline replay of a captured session. It follows the
// structure of device.file.AVFile: a path, an optional loop flag, and a
// mutex-guarded *os.File.
type FileSource struct {
	mu   sync.Mutex
	f    *os.File
	path string
	loop bool
	log  logging.Logger
}

// NewFileSource returns a FileSource reading length-prefixed messages from
// path. If loop is true, reading restarts from the beginning of the file on
// reaching EOF instead of returning io.EOF.
func NewFileSource(l logging.Logger, path string, loop bool) *FileSource {
	return &FileSource{path: path, loop: loop, log: l}
}

// Open opens the backing file. It must be called before ReadMessage.
func (s *FileSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("could not open stream file: %w", err)
	}
	s.f = f
	return nil
}

// ReadMessage reads the next length-prefixed message from the file: a
// 4-byte big-endian length followed by that many bytes.
func (s *FileSource) ReadMessage() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, fmt.Errorf("stream file not open")
	}

	var lenBuf [4]byte
	_, err := io.ReadFull(s.f, lenBuf[:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		if !s.loop {
			return nil, io.EOF
		}
		s.log.Info("looping stream source file")
		if _, serr := s.f.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("could not seek to start for loop: %w", serr)
		}
		if _, err := io.ReadFull(s.f, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("could not read after loop seek: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	l := int(uint32(lenBuf[0])<<24 | uint32(lenBuf[1])<<16 | uint32(lenBuf[2])<<8 | uint32(lenBuf[3]))
	msg := make([]byte, l)
	if _, err := io.ReadFull(s.f, msg); err != nil {
		return nil, fmt.Errorf("could not read message body: %w", err)
	}
	return msg, nil
}

// Close closes the backing file.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
