package parser

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	p := newTestParser()
	require.NotNil(t, p)
}

func TestParseUintFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"float with decimals", "32.00", 32, false},
		{"float with trailing zero", "30.0", 30, false},
		{"large integer", "65535", 65535, false},
		{"large float", "65535.00", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUintFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseFloat32(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float32
		wantErr bool
	}{
		{"bare float", "0.016", 0.016, false},
		{"quoted float", `"0.016"`, 0.016, false},
		{"negative", "-1.5", -1.5, false},
		{"integer", "3", 3, false},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFloat32(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseTick(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		data    []string
		want    float32
		wantErr bool
	}{
		{"typical frame", []string{"0.016"}, 0.016, false},
		{"quoted", []string{`"0.033"`}, 0.033, false},
		{"spike passes through", []string{"2.5"}, 2.5, false},
		{"no args", []string{}, 0, true},
		{"non-numeric", []string{"fast"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseTick(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseRunID(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		data    []string
		want    uint
		wantErr bool
	}{
		{"integer", []string{"12"}, 12, false},
		{"float format", []string{"12.00"}, 12, false},
		{"quoted", []string{`"7"`}, 7, false},
		{"no args", []string{}, 0, true},
		{"negative", []string{"-1"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseRunID(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseBestQuery(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseBestQuery([]string{`"canyon"`})
	require.NoError(t, err)
	assert.Equal(t, "canyon", got)

	got, err = p.ParseBestQuery(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
