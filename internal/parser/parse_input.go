package parser

import (
	"encoding/json"
	"fmt"

	"github.com/driftline/engine/internal/util"
)

// ParseInput parses a :INPUT: key transition: [key, state]. The state token
// accepts the forms both hosts emit (down/up, press/release, 1/0).
func (p *Parser) ParseInput(data []string) (key string, down bool, err error) {
	if len(data) < 2 {
		return "", false, fmt.Errorf("input requires key and state arguments, got %d", len(data))
	}

	key = util.CleanArg(data[0])
	if key == "" {
		return "", false, fmt.Errorf("input key is empty")
	}

	down, err = util.ParseKeyState(util.CleanArg(data[1]))
	if err != nil {
		return "", false, fmt.Errorf("error parsing key state: %w", err)
	}

	return key, down, nil
}

// ParseKeyList parses a :INPUT:SYNC: payload: one JSON array of the keys the
// host believes are currently held. Browsers drop keyup events across tab
// blur, so the host re-syncs the full held set on focus.
func (p *Parser) ParseKeyList(data []string) ([]string, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("key list argument required")
	}

	raw := util.CleanArg(data[0])

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("error unmarshalling key list: %w", err)
	}

	p.logger.Debug("Parsed key sync", "held", len(keys))
	return keys, nil
}
