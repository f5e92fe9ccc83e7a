// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package benchmarker

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// procIOChars is the proc-file fallback the spec calls for when the
// platform API does not expose rchar/wchar (gopsutil's IOCounters only
// surfaces read_bytes/write_bytes, the block-I/O view): read
// /proc/<pid>/io directly for the character-I/O counters.
func procIOChars(pid int32) (readChars, writeChars uint64, err error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/io", pid))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "rchar:"):
			readChars, _ = strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "rchar:")), 10, 64)
		case strings.HasPrefix(line, "wchar:"):
			writeChars, _ = strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "wchar:")), 10, 64)
		}
	}
	return readChars, writeChars, sc.Err()
}

// procUSS approximates unique set size from /proc/<pid>/smaps_rollup's
// Private_Clean + Private_Dirty fields. Not available on every kernel or
// platform; callers fall back to RSS when it errors.
func procUSS(pid int32) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/smaps_rollup", pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var privateClean, privateDirty uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		valueKB, convErr := strconv.ParseUint(fields[1], 10, 64)
		if convErr != nil {
			continue
		}
		switch fields[0] {
		case "Private_Clean:":
			privateClean = valueKB
		case "Private_Dirty:":
			privateDirty = valueKB
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return (privateClean + privateDirty) * 1024, nil
}
