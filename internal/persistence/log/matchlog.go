// Package log persists match replay logs as zstd-compressed JSONL: one
// header line, then one entry per simulated tick. A log plus the config
// files it names is sufficient to re-simulate the match bit for bit.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"steelfront.dev/internal/sim/battle"
)

// MatchLog writes one match's replay log. Safe for use from the sim loop
// plus a closer goroutine.
type MatchLog struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func Path(baseDir, matchID string) string {
	return filepath.Join(baseDir, fmt.Sprintf("%s.jsonl.zst", matchID))
}

// Create opens a fresh log under baseDir and writes the header line.
func Create(baseDir string, hdr battle.MatchHeader) (*MatchLog, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	path := Path(baseDir, hdr.MatchID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l := &MatchLog{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}
	if err := l.writeLine(hdr); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func (l *MatchLog) WriteTick(e battle.TickLogEntry) error { return l.writeLine(e) }

func (l *MatchLog) writeLine(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("match log closed")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := l.w.Flush(); err != nil {
		return err
	}
	// Flush the encoder too: a faulted match can end in os.Exit, and every
	// line already written must survive it.
	return l.enc.Flush()
}

func (l *MatchLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err1 error
	if l.w != nil {
		_ = l.w.Flush()
		l.w = nil
	}
	if l.enc != nil {
		err1 = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	return err1
}

// Reader streams a match log back: header first, then ticks in order.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
	hdr battle.MatchHeader
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	r := &Reader{f: f, dec: dec, sc: sc}
	if !sc.Scan() {
		r.Close()
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: empty match log", path)
	}
	if err := json.Unmarshal(sc.Bytes(), &r.hdr); err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: bad header: %w", path, err)
	}
	return r, nil
}

func (r *Reader) Header() battle.MatchHeader { return r.hdr }

// Next returns the next tick entry. ok is false at clean end of log.
func (r *Reader) Next() (e battle.TickLogEntry, ok bool, err error) {
	if !r.sc.Scan() {
		return e, false, r.sc.Err()
	}
	if err := json.Unmarshal(r.sc.Bytes(), &e); err != nil {
		return e, false, err
	}
	return e, true, nil
}

func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	if r.f != nil {
		err := r.f.Close()
		r.f = nil
		return err
	}
	return nil
}
