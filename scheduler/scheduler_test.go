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

package scheduler

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/9rum/meanalysis/internal/config"
	"github.com/9rum/meanalysis/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	seed := time.Now().Unix()
	fmt.Println(seed)
	rand.Seed(seed)
}

// newSample creates a sample with the given arguments.
func newSample(t testing.TB, nickName string, total int64, fraction float64, skip bool) *sample.Sample {
	rec, err := config.NewRecord(map[string]interface{}{
		sample.KeyNickName:          nickName,
		sample.KeyFileNamesS1:       []interface{}{},
		sample.KeyFileNamesS2:       []interface{}{},
		sample.KeyFractionToProcess: fraction,
		sample.KeyType:              "ME_13TEV",
		sample.KeyProcess:           "TTJETS",
		sample.KeySkip:              skip,
		sample.KeyStep1Enabled:      true,
		sample.KeyStep2Enabled:      true,
	})
	require.NoError(t, err)
	s, err := sample.New(rec, sample.WithReporter(sample.ReporterFunc(func(string, float64) {})))
	require.NoError(t, err)
	s.SetTotalEvents(total)
	return s
}

// sum returns the number of events in the given jobs.
func sum(jobs []Job) (sum int64) {
	for _, job := range jobs {
		sum += job.Len()
	}
	return
}

func TestSplit(t *testing.T) {
	jobs := Split(newSample(t, "ttjets", 1000, 1., false), 300)
	assert.Equal(t, []Job{
		{"ttjets", 0, 300},
		{"ttjets", 300, 600},
		{"ttjets", 600, 900},
		{"ttjets", 900, 1000},
	}, jobs)

	var events int64
	for _, job := range jobs {
		events += job.Len()
	}
	assert.Equal(t, int64(1000), events)

	jobs = Split(newSample(t, "ttjets", 1000, .25, false), 100)
	require.Len(t, jobs, 3)
	assert.Equal(t, Job{"ttjets", 200, 250}, jobs[2])

	assert.Equal(t, []Job{{"ttjets", 0, 1000}}, Split(newSample(t, "ttjets", 1000, 1., false), 0))
	assert.Empty(t, Split(newSample(t, "ttjets", 1000, 1., true), 100))
	assert.Empty(t, Split(newSample(t, "ttjets", 0, 1., false), 100))
	assert.Empty(t, Split(newSample(t, "ttjets", -5, 1., false), 100))
}

func TestStaticScheduler(t *testing.T) {
	const worldSize = 1 << 2

	var jobs []Job
	for i := 0; i < 16; i++ {
		s := newSample(t, fmt.Sprintf("sample%d", i), rand.Int63n(1<<16), 1., false)
		jobs = append(jobs, Split(s, 1<<12)...)
	}

	scheduler := New(worldSize, int32(STATIC))
	assignment := scheduler.Schedule(jobs)
	require.Len(t, assignment, worldSize)

	var (
		total, longest int64
		count          int
	)
	for _, job := range jobs {
		total += job.Len()
		if longest < job.Len() {
			longest = job.Len()
		}
	}
	for rank, assigned := range assignment {
		count += len(assigned)
		t.Logf("rank: %d got: %d", rank, sum(assigned))
		// first-fit-decreasing never exceeds the bin size by more than one job
		assert.LessOrEqual(t, sum(assigned), ceil(total, int64(worldSize))+longest)
	}
	assert.Equal(t, len(jobs), count)
}

func TestStaticSchedulerEmpty(t *testing.T) {
	assignment := NewStaticScheduler(3).Schedule(nil)
	assert.Equal(t, [][]Job{{}, {}, {}}, assignment)
}

func TestDynamicScheduler(t *testing.T) {
	const worldSize = 2

	jobs := make([]Job, 0, 10)
	for i := int64(0); i < 10; i++ {
		jobs = append(jobs, Job{"ttjets", i * 100, (i + 1) * 100})
	}

	scheduler := New(worldSize, int32(DYNAMIC))
	assignment := scheduler.Schedule(jobs)
	assert.Equal(t, int64(500), sum(assignment[0]))
	assert.Equal(t, int64(500), sum(assignment[1]))

	// rank 1 is three times as slow as rank 0
	scheduler.OnBatchEnd(0, 1., 0.)
	scheduler.OnBatchEnd(1, 3., 0.)
	assignment = scheduler.Schedule(jobs)
	assert.Equal(t, int64(800), sum(assignment[0]))
	assert.Equal(t, int64(200), sum(assignment[1]))
}

func TestNewInvalid(t *testing.T) {
	assert.Panics(t, func() { New(0, int32(STATIC)) })
	assert.Panics(t, func() { New(1, int32(7)) })
}

const benchmarkJobs = 1 << 12

func BenchmarkStaticScheduler(b *testing.B) {
	b.StopTimer()
	jobs := make([]Job, 0, benchmarkJobs)
	for len(jobs) < cap(jobs) {
		jobs = append(jobs, Job{"ttjets", 0, rand.Int63n(1 << 16)})
	}
	scheduler := NewStaticScheduler(1 << 3)
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		scheduler.Schedule(jobs)
	}
}

func BenchmarkDynamicScheduler(b *testing.B) {
	b.StopTimer()
	const worldSize = 1 << 3
	jobs := make([]Job, 0, benchmarkJobs)
	for len(jobs) < cap(jobs) {
		jobs = append(jobs, Job{"ttjets", 0, rand.Int63n(1 << 16)})
	}
	scheduler := NewDynamicScheduler(worldSize)
	for rank := 0; rank < worldSize; rank++ {
		scheduler.OnBatchEnd(rank, rand.Float64()+.5, 0.)
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		scheduler.Schedule(jobs)
	}
}
