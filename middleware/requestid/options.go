// Copyright 2025 The NextRush Authors
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

package requestid

// Option defines functional options for requestid middleware configuration.
type Option func(*config)

type config struct {
	header        string
	generator     Generator
	allowClientID bool
	echoOnly      bool
}

func defaultConfig() *config {
	return &config{
		header:        DefaultHeader,
		generator:     Hex,
		allowClientID: true,
	}
}

// WithHeader sets the request/response header carrying the id.
func WithHeader(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.header = name
		}
	}
}

// WithGenerator sets the id generator (Hex, UUID, ULID, Timestamp, or a
// custom one).
func WithGenerator(fn Generator) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.generator = fn
		}
	}
}

// WithoutClientID ignores ids supplied by clients; every request gets a
// freshly generated one. Use at trust boundaries where clients could
// poison log correlation.
func WithoutClientID() Option {
	return func(cfg *config) { cfg.allowClientID = false }
}

// WithEchoOnly only propagates client-provided ids and never generates.
// Useful behind a gateway that already assigns ids.
func WithEchoOnly() Option {
	return func(cfg *config) { cfg.echoOnly = true }
}
