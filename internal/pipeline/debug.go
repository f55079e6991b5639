package pipeline

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lecturenote/lecturenote/internal/config"
)

// CreateDebugFile creates a timestamped artifact under the state debug dir.
func CreateDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := config.ResolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

const wavHeaderSize = 44

// wavDump streams mono s16le frames to disk as they are captured, so a long
// lecture is never held in memory. The RIFF sizes are patched on Close.
type wavDump struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	sampleRate int
	written    int64
	err        error
}

func openWAVDump(sampleRate int) (*wavDump, error) {
	file, err := CreateDebugFile("audio", "wav")
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(wavHeader(0, sampleRate)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &wavDump{file: file, path: file.Name(), sampleRate: sampleRate}, nil
}

func (d *wavDump) write(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil || d.file == nil {
		return
	}
	n, err := d.file.Write(frame)
	d.written += int64(n)
	d.err = err
}

func (d *wavDump) Path() string {
	return d.path
}

// Close finalizes the header. The first write error, if any, is returned.
func (d *wavDump) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return d.err
	}
	file := d.file
	d.file = nil

	if _, err := file.WriteAt(wavHeader(d.written, d.sampleRate), 0); err != nil && d.err == nil {
		d.err = fmt.Errorf("finalize wav header: %w", err)
	}
	if err := file.Close(); err != nil && d.err == nil {
		d.err = err
	}
	return d.err
}

// wavHeader describes dataLen bytes of 16-bit mono PCM.
func wavHeader(dataLen int64, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))
	return header
}
