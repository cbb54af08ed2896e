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

// Package sample provides the descriptor of a physics-analysis sample: a
// named collection of input files for two processing stages together with
// the parameters that bound how many of its events get processed.
//
// A Sample is built in two phases.  Its identity is fixed by the
// configuration record it is created from; the total number of events is
// only known once the input files have been inspected and is set afterwards
// with SetTotalEvents or Populate.
package sample

import (
	"context"
	"errors"

	"github.com/9rum/meanalysis/internal/chain"
	"github.com/9rum/meanalysis/internal/config"
)

// Configuration keys read by New.
const (
	KeyNickName          = "nickName"
	KeyFileNamesS1       = "fileNamesS1"
	KeyFileNamesS2       = "fileNamesS2"
	KeyFractionToProcess = "fractionToProcess"
	KeyType              = "type"
	KeyProcess           = "process"
	KeySkip              = "skip"
	KeyStep1Enabled      = "step1Enabled"
	KeyStep2Enabled      = "step2Enabled"
)

// Stage identifies one of the two sequential processing stages.
type Stage int

const (
	Stage1 Stage = iota + 1
	Stage2
)

var (
	// ErrInvalidStage is returned for a stage other than Stage1 and Stage2.
	ErrInvalidStage = errors.New("sample: invalid stage")

	// ErrStageDisabled is returned when opening the files of a disabled stage.
	ErrStageDisabled = errors.New("sample: stage disabled")
)

// Identity holds the fields of a sample that never change after
// construction.
type Identity struct {
	nickName     string
	fileNamesS1  []string
	fileNamesS2  []string
	fraction     float64
	typ          Type
	process      Process
	skip         bool
	step1Enabled bool
	step2Enabled bool
}

// NickName returns the human-readable identifier of the sample.
func (id Identity) NickName() string {
	return id.nickName
}

// FileNames returns a copy of the input files of the given stage.
func (id Identity) FileNames(stage Stage) []string {
	switch stage {
	case Stage1:
		return append([]string(nil), id.fileNamesS1...)
	case Stage2:
		return append([]string(nil), id.fileNamesS2...)
	default:
		return nil
	}
}

// FractionToProcess returns the fraction of the total events to process.
func (id Identity) FractionToProcess() float64 {
	return id.fraction
}

func (id Identity) Type() Type {
	return id.typ
}

func (id Identity) Process() Process {
	return id.process
}

// Skip reports whether the sample is excluded from processing.
func (id Identity) Skip() bool {
	return id.skip
}

// Enabled reports whether the given processing stage applies to the sample.
func (id Identity) Enabled(stage Stage) bool {
	switch stage {
	case Stage1:
		return id.step1Enabled
	case Stage2:
		return id.step2Enabled
	default:
		return false
	}
}

// Sample represents a single data sample.  A Sample is not safe for
// concurrent use; its owner serializes access.
type Sample struct {
	Identity
	totalEvents int64
	reporter    Reporter
	opener      chain.Opener
	ctx         context.Context
	chains      [2]*chain.Chain
	tree        *chain.Tree
}

// Option configures a Sample.
type Option func(*Sample)

// WithReporter sets the reporter told about fractional processing.
func WithReporter(r Reporter) Option {
	return func(s *Sample) {
		s.reporter = r
	}
}

// WithOpener sets the opener used for the input files.
func WithOpener(o chain.Opener) Option {
	return func(s *Sample) {
		s.opener = o
	}
}

// WithContext sets the context the owned handles are bound to.  Reads from
// the handles fail once it is done, so it must outlive the sample.
func WithContext(ctx context.Context) Option {
	return func(s *Sample) {
		s.ctx = ctx
	}
}

// New creates a new sample from the given configuration record.  Every key
// listed above is required; a missing or mistyped key fails with a
// *config.Error and no sample is returned.
func New(rec config.Record, opts ...Option) (*Sample, error) {
	var (
		id  Identity
		err error
	)
	if id.nickName, err = rec.String(KeyNickName); err != nil {
		return nil, err
	}
	if id.fileNamesS1, err = rec.Strings(KeyFileNamesS1); err != nil {
		return nil, err
	}
	if id.fileNamesS2, err = rec.Strings(KeyFileNamesS2); err != nil {
		return nil, err
	}
	if id.fraction, err = rec.Float(KeyFractionToProcess); err != nil {
		return nil, err
	}
	typ, err := enum(rec, KeyType, typeNames[:])
	if err != nil {
		return nil, err
	}
	id.typ = Type(typ)
	process, err := enum(rec, KeyProcess, processNames[:])
	if err != nil {
		return nil, err
	}
	id.process = Process(process)
	if id.skip, err = rec.Bool(KeySkip); err != nil {
		return nil, err
	}
	if id.step1Enabled, err = rec.Bool(KeyStep1Enabled); err != nil {
		return nil, err
	}
	if id.step2Enabled, err = rec.Bool(KeyStep2Enabled); err != nil {
		return nil, err
	}

	s := &Sample{
		Identity: id,
		reporter: logReporter{},
		opener:   chain.FileOpener{},
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TotalEvents returns the total number of events in the sample.  This is
// zero until the event count has been populated.
func (s *Sample) TotalEvents() int64 {
	return s.totalEvents
}

// SetTotalEvents sets the total number of events in the sample.
func (s *Sample) SetTotalEvents(n int64) {
	s.totalEvents = n
}

// FirstEvent returns the first event to process.
func (s *Sample) FirstEvent() int64 {
	if s.skip {
		return 0
	}
	return 0
}

// LastEvent returns the upper bound of the events to process.  A skipped
// sample returns -1.  If only a fraction of the sample is processed, the
// bound is truncated and the reporter is told about it.
func (s *Sample) LastEvent() int64 {
	last, partial := LastEvent(s.skip, s.fraction, s.totalEvents)
	if partial && s.reporter != nil {
		s.reporter.ReportFraction(s.nickName, s.fraction)
	}
	return last
}

// Range returns both bounds of the events to process.
func (s *Sample) Range() (first, last int64) {
	return s.FirstEvent(), s.LastEvent()
}

// LastEvent computes the upper bound of the events to process for the given
// state.  partial is set if the bound was derived from the fraction.
func LastEvent(skip bool, fraction float64, total int64) (last int64, partial bool) {
	if skip {
		return -1, false
	}
	if fraction < 1. {
		return int64(fraction * float64(total)), true
	}
	return total, false
}

// Chain returns the chain over the files of the given stage, opening it on
// first use.  The chain is owned by the sample and released by Close; it is
// bound to the context given with WithContext.
func (s *Sample) Chain(stage Stage) (*chain.Chain, error) {
	if stage != Stage1 && stage != Stage2 {
		return nil, ErrInvalidStage
	}
	if !s.Enabled(stage) {
		return nil, ErrStageDisabled
	}
	if s.chains[stage-1] == nil {
		s.chains[stage-1] = chain.New(s.ctx, s.opener, s.FileNames(stage))
	}
	return s.chains[stage-1], nil
}

// Tree returns the structured reader over the stage-2 chain, opening it on
// first use.  The tree shares its position with the stage-2 chain.
func (s *Sample) Tree() (*chain.Tree, error) {
	if s.tree == nil {
		c, err := s.Chain(Stage2)
		if err != nil {
			return nil, err
		}
		s.tree = chain.NewTree(c)
	}
	return s.tree, nil
}

// Count counts the events of the first enabled stage.  It reads only the
// identity of the sample and opens its own handles, so the owned handles are
// left untouched and the counter is not modified.
func (s *Sample) Count(ctx context.Context) (int64, error) {
	stage := Stage1
	if !s.step1Enabled {
		stage = Stage2
	}
	if !s.Enabled(stage) {
		return 0, ErrStageDisabled
	}

	tree := chain.NewTree(chain.New(ctx, s.opener, s.FileNames(stage)))
	defer tree.Close()

	return tree.Entries()
}

// Populate counts the events of the first enabled stage and stores the count
// as the total number of events.
func (s *Sample) Populate(ctx context.Context) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	s.SetTotalEvents(n)
	return nil
}

// Close releases the handles opened by the sample.  Closing a sample again
// is a no-op.
func (s *Sample) Close() error {
	var errs []error
	if s.tree != nil {
		errs = append(errs, s.tree.Close())
		s.tree = nil
	}
	for stage, c := range s.chains {
		if c != nil {
			errs = append(errs, c.Close())
			s.chains[stage] = nil
		}
	}
	return errors.Join(errs...)
}
