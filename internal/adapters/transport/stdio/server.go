package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
	"go.uber.org/zap"
)

const maxLineSize = 1024 * 1024

// errLineTooLong marks a command that was dropped because it exceeded
// maxLineSize. The rest of its line has already been consumed.
var errLineTooLong = fmt.Errorf("%w: command exceeds %d bytes", domain.ErrMalformedCommand, maxLineSize)

// Server reads newline-delimited commands and writes one response line per
// command, in order.
type Server struct {
	in      io.Reader
	out     io.Writer
	handler ports.CommandHandler
	logger  *zap.Logger
}

func NewServer(in io.Reader, out io.Writer, handler ports.CommandHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{in: in, out: out, handler: handler, logger: logger}
}

// Serve runs until the input is exhausted or ctx is canceled. Blank lines
// are skipped. A line longer than maxLineSize is answered with a
// MalformedCommand error and serving continues with the next line.
func (s *Server) Serve(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)
	writer := bufio.NewWriter(s.out)
	served := 0
	for {
		raw, err := readLine(reader)
		eof := errors.Is(err, io.EOF)
		if eof && len(raw) == 0 {
			break
		}
		if err != nil && !eof && !errors.Is(err, errLineTooLong) {
			return fmt.Errorf("read command: %w", err)
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		var response string
		if errors.Is(err, errLineTooLong) {
			s.logger.Warn("command dropped", zap.Int("limit", maxLineSize))
			response = encodeError(err)
		} else if line := bytes.TrimSpace(raw); len(line) > 0 {
			response = s.handler.Call(ctx, string(line))
		}

		if response != "" {
			if _, werr := writer.WriteString(response + "\n"); werr != nil {
				return fmt.Errorf("write response: %w", werr)
			}
			if ferr := writer.Flush(); ferr != nil {
				return fmt.Errorf("flush response: %w", ferr)
			}
			served++
		}
		if eof {
			break
		}
	}

	s.logger.Debug("input closed", zap.Int("commands", served))
	return nil
}

// readLine returns the next line without its terminator. A final line with
// no newline comes back together with io.EOF. When the line exceeds
// maxLineSize the remainder is discarded and errLineTooLong is returned.
func readLine(reader *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(line)+len(chunk) > maxLineSize+1 {
			if err := discardLine(reader, err); err != nil {
				return nil, err
			}
			return nil, errLineTooLong
		}
		line = append(line, chunk...)

		switch {
		case err == nil:
			return bytes.TrimSuffix(line, []byte("\n")), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return line, err
		}
	}
}

// discardLine skips to the end of the current line. last is the error from
// the read that found the line too long.
func discardLine(reader *bufio.Reader, last error) error {
	for errors.Is(last, bufio.ErrBufferFull) {
		_, last = reader.ReadSlice('\n')
	}
	if last == nil || errors.Is(last, io.EOF) {
		return nil
	}
	return last
}

func encodeError(err error) string {
	encoded, merr := json.Marshal(domain.NewErrorResponse("", err))
	if merr != nil {
		return fmt.Sprintf(`{"type":"error","code":%q,"message":%q}`, domain.CodeMalformedCommand, err.Error())
	}
	return string(encoded)
}
