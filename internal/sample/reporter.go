// Copyright 2022 Sogang University
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

package sample

import (
	"fmt"

	"github.com/golang/glog"
)

// Reporter is told when only a fraction of a sample is processed.
type Reporter interface {
	ReportFraction(nickName string, fraction float64)
}

// ReporterFunc is an adapter to allow the use of ordinary functions as
// reporters.
type ReporterFunc func(nickName string, fraction float64)

func (f ReporterFunc) ReportFraction(nickName string, fraction float64) {
	f(nickName, fraction)
}

// FractionMessage formats the line reported for fractional processing.
func FractionMessage(nickName string, fraction float64) string {
	return fmt.Sprintf("Processing a fraction of sample %s: %v", nickName, fraction)
}

// logReporter writes the report to the info log.
type logReporter struct{}

func (logReporter) ReportFraction(nickName string, fraction float64) {
	glog.Info(FractionMessage(nickName, fraction))
}
