// Package parser turns raw host bridge argument arrays into typed values.
// It is pure: no storage, no caches, no callbacks. Handlers own the side
// effects.
package parser

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/driftline/engine/internal/util"
)

// ParseUintFromFloat parses a string that may be an integer ("12") or float
// ("12.00") into uint64. JS hosts have a single number type, so run and frame
// ids can arrive float-formatted.
func ParseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("ParseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// ParseFloat32 parses a quoted or bare numeric string into float32.
func ParseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(util.CleanArg(s), 32)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

// Parser provides pure []string -> typed value conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency. A nil logger
// falls back to slog's default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseTick parses the frame delta for a :TICK: command. The value is
// wall-frame seconds; range clamping is the integrator's job, not ours.
func (p *Parser) ParseTick(data []string) (float32, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("tick requires a dt argument")
	}
	dt, err := ParseFloat32(data[0])
	if err != nil {
		return 0, fmt.Errorf("error converting dt to float: %w", err)
	}
	return dt, nil
}

// ParseRunID parses a run identifier argument.
func (p *Parser) ParseRunID(data []string) (uint, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("run id argument required")
	}
	id, err := ParseUintFromFloat(util.CleanArg(data[0]))
	if err != nil {
		return 0, fmt.Errorf("error converting run id to uint: %w", err)
	}
	return uint(id), nil
}

// ParseBestQuery parses an optional track name for a :BEST: query. An empty
// argument list means the currently loaded track.
func (p *Parser) ParseBestQuery(data []string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	return util.CleanArg(data[0]), nil
}
