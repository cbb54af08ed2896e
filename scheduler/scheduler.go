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

// Package scheduler provides primitives for distributing the events of
// samples across workers.  The event range of each sample is split into
// jobs, which are then packed onto the workers so that each of them gets a
// similar amount of work.  In addition to static scheduling, it supports a
// feedback-directed optimization that adjusts the workload on each worker
// according to its measured throughput.
package scheduler

import (
	"sort"

	"github.com/9rum/meanalysis/internal/sample"
	"golang.org/x/exp/constraints"
)

const (
	STATIC = iota
	DYNAMIC
)

// Job represents the half-open range of events [First, Last) of a sample
// processed by a single worker invocation.
type Job struct {
	NickName string
	First    int64
	Last     int64
}

// Len returns the number of events in the job.
func (j Job) Len() int64 {
	return j.Last - j.First
}

// Split splits the event range of the given sample into consecutive jobs of
// at most eventsPerJob events.  The range is taken as [FirstEvent, LastEvent),
// so LastEvent itself is never processed: for a full sample it equals the
// total number of events.  A non-positive eventsPerJob yields a single job.
// Skipped samples and empty ranges yield no jobs.
func Split(s *sample.Sample, eventsPerJob int64) []Job {
	if s.Skip() {
		return nil
	}
	first, last := s.Range()
	if last <= first {
		return nil
	}
	if eventsPerJob <= 0 {
		eventsPerJob = last - first
	}

	jobs := make([]Job, 0, ceil(last-first, eventsPerJob))
	for base := first; base < last; base += eventsPerJob {
		limit := base + eventsPerJob
		if last < limit {
			limit = last
		}
		jobs = append(jobs, Job{NickName: s.NickName(), First: base, Last: limit})
	}
	return jobs
}

// Scheduler represents the job scheduler.
// All implementations must embed SchedulerBase for forward compatibility.
type Scheduler interface {
	// Schedule assigns the given jobs to the workers.  This returns a matrix
	// of shape (world size, # of jobs assigned to the worker).
	Schedule(jobs []Job) [][]Job

	// OnBatchEnd is called with the performance indicators of a worker once
	// it has processed its jobs.
	OnBatchEnd(rank int, coefficient, intercept float64)
}

// SchedulerBase must be embedded to have forward compatible implementations.
type SchedulerBase struct {
}

func (SchedulerBase) Schedule(jobs []Job) (_ [][]Job) {
	return
}
func (SchedulerBase) OnBatchEnd(rank int, coefficient, intercept float64) {}

// New creates a new scheduler with the given arguments.
func New[T ~int32](worldSize int, typ T) Scheduler {
	if worldSize < 1 {
		panic("invalid world size")
	}

	switch typ {
	case STATIC:
		return NewStaticScheduler(worldSize)
	case DYNAMIC:
		return NewDynamicScheduler(worldSize)
	default:
		panic("invalid type")
	}
}

// ceil returns the least integer value greater than or equal to numerator / denominator.
// This is an alternative to the Ceil function in the standard math package.
func ceil[T constraints.Integer](numerator, denominator T) T {
	if numerator%denominator == 0 {
		return numerator / denominator
	}
	return numerator/denominator + 1
}

// sorted returns a copy of the given jobs in decreasing order of length.
func sorted(jobs []Job) []Job {
	out := append([]Job(nil), jobs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Len() < out[i].Len()
	})
	return out
}

// matrix creates an empty assignment for the given number of workers.
func matrix(worldSize int) [][]Job {
	out := make([][]Job, 0, worldSize)
	for len(out) < cap(out) {
		out = append(out, make([]Job, 0))
	}
	return out
}

// argmin returns the index of the smallest value in the given slice.
func argmin[T constraints.Ordered](slice []T) (index int) {
	for i, v := range slice {
		if v < slice[index] {
			index = i
		}
	}
	return
}

// StaticScheduler provides balanced workload to each of the workers in a
// homogeneous cluster.
type StaticScheduler struct {
	SchedulerBase
	worldSize int
}

// NewStaticScheduler creates a new static scheduler with the given arguments.
func NewStaticScheduler(worldSize int) *StaticScheduler {
	return &StaticScheduler{
		worldSize: worldSize,
	}
}

// Schedule assigns the jobs to the workers.  It adopts first-fit-decreasing
// (FFD), which is an approximately-optimal heuristic for bin packing, with
// the bin size set to the average number of events per worker.  A job that
// does not fit in any bin goes to the least loaded worker.
// FFD paper: https://dspace.mit.edu/bitstream/handle/1721.1/57819/17595570-MIT.pdf
func (s *StaticScheduler) Schedule(jobs []Job) [][]Job {
	jobs = sorted(jobs)

	var total int64
	for _, job := range jobs {
		total += job.Len()
	}
	binSize := ceil(total, int64(s.worldSize))

	bins := make([]int64, s.worldSize)
	indices := matrix(s.worldSize)

	// pack the bins in a first-fit-decreasing fashion
	for _, job := range jobs {
		rank := -1
		for r, bin := range bins {
			if bin+job.Len() <= binSize {
				rank = r
				break
			}
		}
		if rank < 0 {
			rank = argmin(bins)
		}
		indices[rank] = append(indices[rank], job)
		bins[rank] += job.Len()
	}

	return indices
}

// DynamicScheduler provides a feedback-directed optimization. It adaptively
// adjusts the workload on each worker, which can be useful in heterogeneous
// clusters where the workers have different throughput.  The processing time
// of a job on a worker is estimated as coefficient * events + intercept.
type DynamicScheduler struct {
	SchedulerBase
	worldSize    int
	coefficients []float64
	intercepts   []float64
}

// NewDynamicScheduler creates a new dynamic scheduler with the given arguments.
func NewDynamicScheduler(worldSize int) *DynamicScheduler {
	return &DynamicScheduler{
		worldSize:    worldSize,
		coefficients: make([]float64, worldSize),
		intercepts:   make([]float64, worldSize),
	}
}

// estimate returns the estimated processing time of the given job on the
// worker with the given rank.  Workers without a profile are assumed to
// process one event per unit time.
func (s *DynamicScheduler) estimate(rank int, job Job) float64 {
	if s.coefficients[rank] == 0. {
		return float64(job.Len()) + s.intercepts[rank]
	}
	return s.coefficients[rank]*float64(job.Len()) + s.intercepts[rank]
}

// Schedule assigns the jobs to the workers in decreasing order of length,
// each to the worker that would finish it first.
func (s *DynamicScheduler) Schedule(jobs []Job) [][]Job {
	bins := make([]float64, s.worldSize)
	indices := matrix(s.worldSize)

	for _, job := range sorted(jobs) {
		finish := make([]float64, s.worldSize)
		for rank := range finish {
			finish[rank] = bins[rank] + s.estimate(rank, job)
		}
		rank := argmin(finish)
		indices[rank] = append(indices[rank], job)
		bins[rank] = finish[rank]
	}

	return indices
}

// OnBatchEnd updates the worker profile with the given feedback.
func (s *DynamicScheduler) OnBatchEnd(rank int, coefficient, intercept float64) {
	s.coefficients[rank], s.intercepts[rank] = coefficient, intercept
}
