package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// TailOptions controls a single Tail call. A negative Offset means "the last
// Limit lines"; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	Match  string
	// Wait bounds how long Tail polls for new lines when none are available.
	Wait time.Duration
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields no lines and offset zero
// so callers can start tailing before the daemon has written anything.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	deadline := time.Now().Add(opts.Wait)

	offset := opts.Offset
	for {
		var (
			lines []string
			next  int64
			err   error
		)
		if offset < 0 {
			lines, next, err = lastLines(path, opts.Limit, opts.Match)
		} else {
			lines, next, err = linesFrom(path, offset, opts.Match)
		}
		if err != nil {
			return TailResult{Offset: max(offset, 0)}, err
		}
		if len(lines) > 0 || !time.Now().Before(deadline) {
			return TailResult{Lines: lines, Offset: next}, nil
		}
		offset = next

		select {
		case <-ctx.Done():
			return TailResult{Offset: next}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Follow streams lines appended after offset to fn until ctx is canceled.
func Follow(ctx context.Context, path string, offset int64, match string, fn func(string)) error {
	for {
		result, err := Tail(ctx, path, TailOptions{Offset: offset, Match: match, Wait: time.Second})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			fn(line)
		}
		offset = result.Offset
		if ctx.Err() != nil {
			return nil
		}
	}
}

func openLog(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

// lastLines keeps at most limit matching lines while scanning the whole file.
func lastLines(path string, limit int, match string) ([]string, int64, error) {
	file, size, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if limit <= 0 {
		return nil, size, nil
	}

	kept := make([]string, 0, limit)
	end, err := scan(file, func(line string) {
		if !matches(line, match) {
			return
		}
		if len(kept) == limit {
			copy(kept, kept[1:])
			kept = kept[:limit-1]
		}
		kept = append(kept, line)
	})
	if err != nil {
		return nil, 0, err
	}
	return kept, end, nil
}

// linesFrom reads every complete line after offset. An offset past the end
// of the file means it was truncated, so reading restarts at the beginning.
func linesFrom(path string, offset int64, match string) ([]string, int64, error) {
	file, size, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	consumed, err := scan(file, func(line string) {
		if matches(line, match) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return lines, offset + consumed, nil
}

// scan feeds complete lines to fn and returns the bytes consumed. A trailing
// partial line is left for the next read.
func scan(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			if len(line) > maxLineBytes {
				line = line[:maxLineBytes]
			}
			fn(strings.TrimRight(line, "\r\n"))
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func matches(line, match string) bool {
	match = strings.TrimSpace(match)
	return match == "" || strings.Contains(line, match)
}
