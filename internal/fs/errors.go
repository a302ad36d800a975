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

package fs

import (
	"github.com/jacobsa/fuse"
	"github.com/zff-team/zffmount/internal/logger"
	"github.com/zff-team/zffmount/internal/metrics"
)

// kind classifies a failure per the error taxonomy (spec §7). It exists only
// to drive logging detail; every kind still downgrades to fuse.ENOENT at the
// dispatcher boundary.
type kind int

const (
	kindInvalidArgument kind = iota
	kindNotFound
	kindCorruptOrUnsupported
	kindIO
)

// downgrade logs op/detail/cause and returns fuse.ENOENT, the single kernel
// error code every dispatcher failure surfaces as (spec §7: "All failures
// from the reader facade are logged ... and downgraded to a single kernel
// error code").
func downgrade(k kind, op string, detail string, cause error) error {
	outcome := "corrupt"
	switch k {
	case kindInvalidArgument:
		outcome = "invalid_argument"
		logger.Warnf("%s: invalid argument (%s)", op, detail)
	case kindNotFound:
		outcome = "not_found"
		logger.Debugf("%s: not found (%s)", op, detail)
	case kindIO:
		outcome = "io_error"
		logger.Errorf("%s: io failure (%s): %v", op, detail, cause)
	default:
		logger.Errorf("%s: corrupt or unsupported (%s): %v", op, detail, cause)
	}
	metrics.OutcomesTotal.WithLabelValues(op, outcome).Inc()
	return fuse.ENOENT
}
