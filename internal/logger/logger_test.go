// Copyright 2026 The zffmount Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zff-team/zffmount/cfg"
)

func redirectLogsToBuffer(buf *bytes.Buffer, format string, severity cfg.Severity) {
	defaultLoggerFactory.format = format
	defaultLoggerFactory.programLevel = new(slog.LevelVar)
	setLoggingLevel(severity, defaultLoggerFactory.programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(buf, defaultLoggerFactory.programLevel, ""))
}

func testFuncs() []func() {
	return []func(){
		func() { Tracef("trace %s", "msg") },
		func() { Debugf("debug %s", "msg") },
		func() { Infof("info %s", "msg") },
		func() { Warnf("warning %s", "msg") },
		func() { Errorf("error %s", "msg") },
	}
}

func collectOutput(format string, severity cfg.Severity) []string {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, format, severity)

	var out []string
	for _, f := range testFuncs() {
		f()
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func TestTextFormat_LevelOff(t *testing.T) {
	out := collectOutput("text", cfg.SeverityOff)
	for _, line := range out {
		assert.Empty(t, line)
	}
}

func TestTextFormat_LevelError(t *testing.T) {
	out := collectOutput("text", cfg.SeverityError)
	assert.Empty(t, out[0])
	assert.Empty(t, out[1])
	assert.Empty(t, out[2])
	assert.Empty(t, out[3])
	assert.Regexp(t, regexp.MustCompile(`severity=ERROR message="error msg"`), out[4])
}

func TestTextFormat_LevelTrace(t *testing.T) {
	out := collectOutput("text", cfg.SeverityTrace)
	assert.Regexp(t, regexp.MustCompile(`severity=TRACE`), out[0])
	assert.Regexp(t, regexp.MustCompile(`severity=DEBUG`), out[1])
	assert.Regexp(t, regexp.MustCompile(`severity=INFO`), out[2])
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING`), out[3])
	assert.Regexp(t, regexp.MustCompile(`severity=ERROR`), out[4])
}

func TestJSONFormat_LevelInfo(t *testing.T) {
	out := collectOutput("json", cfg.SeverityInfo)
	assert.Empty(t, out[0])
	assert.Empty(t, out[1])
	assert.Regexp(t, regexp.MustCompile(`"severity":"INFO","message":"info msg"`), out[2])
	assert.Regexp(t, regexp.MustCompile(`"severity":"WARNING"`), out[3])
	assert.Regexp(t, regexp.MustCompile(`"severity":"ERROR"`), out[4])
}

func TestSetLoggingLevel(t *testing.T) {
	cases := []struct {
		in   cfg.Severity
		want slog.Level
	}{
		{cfg.SeverityTrace, LevelTrace},
		{cfg.SeverityDebug, LevelDebug},
		{cfg.SeverityInfo, LevelInfo},
		{cfg.SeverityWarning, LevelWarn},
		{cfg.SeverityError, LevelError},
		{cfg.SeverityOff, LevelOff},
	}

	for _, c := range cases {
		lv := new(slog.LevelVar)
		setLoggingLevel(c.in, lv)
		assert.Equal(t, c.want, lv.Level())
	}
}
