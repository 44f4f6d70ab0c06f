package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/driftline/engine/internal/util"
)

// ParseTrackRequest parses :TRACK:LOAD: args: [course, autostart?]. The
// course argument is either a course name or an inline JSON definition;
// inline payloads start with "{" after unquoting.
func (p *Parser) ParseTrackRequest(data []string) (TrackRequest, error) {
	var req TrackRequest

	if len(data) < 1 {
		return req, fmt.Errorf("track request requires a course argument")
	}

	raw := util.CleanArg(data[0])
	if raw == "" {
		return req, fmt.Errorf("course argument is empty")
	}

	if strings.HasPrefix(raw, "{") {
		if !json.Valid([]byte(raw)) {
			return req, fmt.Errorf("inline course is not valid JSON")
		}
		req.Inline = []byte(raw)
	} else {
		req.Course = raw
	}

	if len(data) > 1 {
		auto, err := strconv.ParseBool(util.CleanArg(data[1]))
		if err != nil {
			return req, fmt.Errorf("error converting autostart to bool: %w", err)
		}
		req.AutoStart = auto
	}

	p.logger.Debug("Parsed track request",
		"course", req.Course,
		"inline", len(req.Inline) > 0,
		"autoStart", req.AutoStart)

	return req, nil
}
